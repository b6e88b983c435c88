package services

import (
	"encoding/json"

	"clubhouseexport/models"
)

// FormatCell はテーブルのセルに表示する文字列を返します（JSON表現、キーがない場合は空）
func FormatCell(value any, ok bool) string {
	if !ok {
		return ""
	}
	b, err := models.EncodeJSON(value)
	if err != nil {
		return ""
	}
	return string(b)
}

// FormatCSVValue はCSVに書き込む文字列を返します
func FormatCSVValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	b, err := models.EncodeJSON(value)
	if err != nil {
		return ""
	}
	return string(b)
}
