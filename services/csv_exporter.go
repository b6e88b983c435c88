package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"clubhouseexport/models"
	"clubhouseexport/utils"
)

// CSVExporter は行データをCSVに書き出します
type CSVExporter struct {
	now func() time.Time
}

// NewCSVExporter は新しいCSVエクスポーターを作成します
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{now: time.Now}
}

// FileName は "<resource>-<エポックミリ秒>.csv" 形式のファイル名を返します
func (e *CSVExporter) FileName(resource models.Resource) string {
	return fmt.Sprintf("%s-%d.csv", resource, e.now().UnixMilli())
}

// UnionHeaders は全行に現れるキーを出現順に返します
func UnionHeaders(rows []models.FlatRecord) []string {
	headers := make([]string, 0)
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, key := range row.Keys {
			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
		}
	}
	return headers
}

// Write は全行をCSVとして書き込みます。表示上限は適用しません。
// 行がない場合は何も書き込みません。
func (e *CSVExporter) Write(w io.Writer, rows []models.FlatRecord) error {
	if len(rows) == 0 {
		return nil
	}

	headers := UnionHeaders(rows)

	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("ヘッダー書き込みエラー: %w", err)
	}

	for _, row := range rows {
		record := make([]string, len(headers))
		for i, header := range headers {
			if value, ok := row.Get(header); ok {
				record[i] = FormatCSVValue(value)
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("行書き込みエラー: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV書き込み完了エラー: %w", err)
	}

	return nil
}

// WriteFile はCSVファイルを作成します。dir 内に FileName の名前で書き込み、そのパスを返します
func (e *CSVExporter) WriteFile(dir string, resource models.Resource, rows []models.FlatRecord) (string, error) {
	path := filepath.Join(dir, e.FileName(resource))
	utils.LogInfo("CSVファイル '%s' を作成します", path)

	var buf bytes.Buffer
	if err := e.Write(&buf, rows); err != nil {
		return "", err
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return "", fmt.Errorf("CSVファイル作成エラー: %w", err)
	}

	utils.LogInfo("CSV書き込み完了: %d 行", len(rows))
	return path, nil
}
