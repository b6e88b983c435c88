package utils

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "warn")

	LogInfo("表示されない %d", 1)
	LogWarn("警告 %s", "a")
	LogError("エラー %s", "b")

	out := buf.String()
	assert.NotContains(t, out, "表示されない")
	assert.Contains(t, out, "警告 a")
	assert.Contains(t, out, "エラー b")
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	require.NoError(t, SetupLogger(path, "debug"))
	LogDebug("ファイル出力")
	require.NoError(t, CloseFile())

	assert.FileExists(t, path)
}
