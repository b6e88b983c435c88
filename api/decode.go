package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"clubhouseexport/models"
)

// DecodeRecords はJSON配列をキー順序を保ったままRawRecordの列に変換します。
// {"data": [...]} 形式のレスポンスも受け付けます。
func DecodeRecords(r io.Reader) ([]models.RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	value, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("JSON解析エラー: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("JSON解析エラー: 余分なデータがあります")
	}

	if obj, ok := value.(models.RawRecord); ok {
		data, found := obj.Get("data")
		if !found {
			return nil, errors.New("レスポンスに配列がありません")
		}
		value = data
	}

	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("レスポンスが配列ではありません: %T", value)
	}

	records := make([]models.RawRecord, 0, len(items))
	for i, item := range items {
		record, ok := item.(models.RawRecord)
		if !ok {
			return nil, fmt.Errorf("要素 %d がオブジェクトではありません", i)
		}
		records = append(records, record)
	}

	return records, nil
}

// DecodeRecordsBytes はバイト列版のDecodeRecordsです
func DecodeRecordsBytes(b []byte) ([]models.RawRecord, error) {
	return DecodeRecords(bytes.NewReader(b))
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		record := models.RawRecord{Members: []models.Member{}}
		// 重複したキーは JSON.parse と同じく最初の位置に最後の値を残す
		index := make(map[string]int)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("不正なキー: %v", keyTok)
			}
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			if i, ok := index[key]; ok {
				record.Members[i].Value = value
				continue
			}
			index[key] = len(record.Members)
			record.Members = append(record.Members, models.Member{Key: key, Value: value})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return record, nil
	case '[':
		items := []any{}
		for dec.More() {
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return items, nil
	}

	return nil, fmt.Errorf("予期しない区切り文字: %v", delim)
}
