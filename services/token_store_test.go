package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store := NewFileTokenStore(path)

	_, ok := store.Get()
	assert.False(t, ok)

	require.NoError(t, store.Set("abc123"))

	token, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// 再入力で上書きされる
	require.NoError(t, store.Set("def456"))
	token, _ = store.Get()
	assert.Equal(t, "def456", token)
}

func TestFileTokenStore_RejectsEmpty(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token"))
	require.Error(t, store.Set(""))
}

func TestResolveToken(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token"))

	assert.Equal(t, "", ResolveToken(store, "", " "))
	assert.Equal(t, "flag", ResolveToken(store, "flag", "env"))
	assert.Equal(t, "env", ResolveToken(store, "", "env"))

	require.NoError(t, store.Set("saved"))
	assert.Equal(t, "saved", ResolveToken(store, "", ""))
}
