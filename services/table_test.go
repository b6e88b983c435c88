package services

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"clubhouseexport/models"
)

func makeRows(n int) []models.FlatRecord {
	rows := make([]models.FlatRecord, 0, n)
	for i := 0; i < n; i++ {
		row := models.NewFlatRecord()
		row.Set("id", json.Number(fmt.Sprint(i)))
		row.Set("name", fmt.Sprintf("user-%d", i))
		rows = append(rows, row)
	}
	return rows
}

func TestRenderTable_DisplayCap(t *testing.T) {
	for _, n := range []int{0, 1, 99, 100, 101, 250} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			table := RenderTable(makeRows(n))
			assert.Len(t, table.Rows, min(n, DisplayLimit))
		})
	}
}

func TestRenderTable_ZeroRows(t *testing.T) {
	table := RenderTable(nil)

	assert.Empty(t, table.Headers)
	assert.Empty(t, table.Rows)
}

func TestRenderTable_CellsAreJSON(t *testing.T) {
	row := models.NewFlatRecord()
	row.Set("id", json.Number("1"))
	row.Set("name", "Alice")
	row.Set("owner", nil)
	row.Set("archived", false)
	row.Set("tags", []any{"a", "<b>"})

	table := RenderTable([]models.FlatRecord{row})

	assert.Equal(t, []string{"id", "name", "owner", "archived", "tags"}, table.Headers)
	assert.Equal(t, [][]string{{"1", `"Alice"`, "null", "false", `["a","<b>"]`}}, table.Rows)
}

func TestRenderTable_HeadersFromFirstRowOnly(t *testing.T) {
	first := models.NewFlatRecord()
	first.Set("id", json.Number("1"))
	first.Set("name", "Alice")

	second := models.NewFlatRecord()
	second.Set("id", json.Number("2"))
	second.Set("email", "bob@example.com")

	table := RenderTable([]models.FlatRecord{first, second})

	assert.Equal(t, []string{"id", "name"}, table.Headers)
	// 2行目の name は存在しないので空、email は表示されない
	assert.Equal(t, []string{"2", ""}, table.Rows[1])
}
