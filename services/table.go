package services

import "clubhouseexport/models"

// DisplayLimit は画面に表示する最大行数です
const DisplayLimit = 100

// RenderTable は先頭行のキーを列として、最大DisplayLimit行のテーブルを作成します。
// 2行目以降にしかないキーは表示されません。
func RenderTable(rows []models.FlatRecord) models.Table {
	table := models.Table{
		Headers: []string{},
		Rows:    [][]string{},
	}
	if len(rows) == 0 {
		return table
	}

	table.Headers = append(table.Headers, rows[0].Keys...)

	limit := min(len(rows), DisplayLimit)
	for _, row := range rows[:limit] {
		cells := make([]string, len(table.Headers))
		for i, key := range table.Headers {
			value, ok := row.Get(key)
			cells[i] = FormatCell(value, ok)
		}
		table.Rows = append(table.Rows, cells)
	}

	return table
}
