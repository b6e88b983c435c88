package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Resource は取得対象のリソースの種類を表します
type Resource string

const (
	ResourceMembers  Resource = "members"
	ResourceEpics    Resource = "epics"
	ResourceProjects Resource = "projects"
	ResourceLabels   Resource = "labels"
	ResourceFeatures Resource = "features"
	ResourceBugs     Resource = "bugs"
)

// Resources は画面のナビゲーション順に並べた全リソースです
var Resources = []Resource{
	ResourceMembers,
	ResourceEpics,
	ResourceProjects,
	ResourceLabels,
	ResourceFeatures,
	ResourceBugs,
}

// ResourceLabelMapping はナビゲーションボタンの表示名です
var ResourceLabelMapping = map[Resource]string{
	ResourceMembers:  "Users",
	ResourceEpics:    "Epics",
	ResourceProjects: "Projects",
	ResourceLabels:   "Labels",
	ResourceFeatures: "Features",
	ResourceBugs:     "Bugs",
}

// ErrUnknownResource は不明なリソース名の場合のエラーです
var ErrUnknownResource = errors.New("不明なリソース")

// ParseResource は文字列をResourceに変換します
func ParseResource(s string) (Resource, error) {
	for _, r := range Resources {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResource, s)
}

// StoryType はストーリー検索で使うstory_typeを返します（通常のコレクションは空文字）
func (r Resource) StoryType() string {
	switch r {
	case ResourceFeatures:
		return "feature"
	case ResourceBugs:
		return "bug"
	}
	return ""
}

// Label は表示名を返します
func (r Resource) Label() string {
	if label, ok := ResourceLabelMapping[r]; ok {
		return label
	}
	return string(r)
}

// Member はJSONオブジェクトの1メンバー（キーと値）です
type Member struct {
	Key   string
	Value any
}

// RawRecord はAPIから返されたネストしたJSONオブジェクトです。
// キーの順序はレスポンスの順序を保持します。
// 値は RawRecord, []any, string, json.Number, bool, nil のいずれかです。
type RawRecord struct {
	Members []Member
}

// Get はキーに対応する値を返します
func (r RawRecord) Get(key string) (any, bool) {
	for _, m := range r.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// FlatRecord はドット区切りのパス → スカラー値の1階層マッピングです
type FlatRecord struct {
	Keys   []string
	Values map[string]any
}

// NewFlatRecord は空のFlatRecordを作成します
func NewFlatRecord() FlatRecord {
	return FlatRecord{Values: make(map[string]any)}
}

// Set はキーを追加します。既存キーの場合は値のみ更新します
func (f *FlatRecord) Set(key string, value any) {
	if f.Values == nil {
		f.Values = make(map[string]any)
	}
	if _, ok := f.Values[key]; !ok {
		f.Keys = append(f.Keys, key)
	}
	f.Values[key] = value
}

// Get はキーに対応する値を返します
func (f FlatRecord) Get(key string) (any, bool) {
	v, ok := f.Values[key]
	return v, ok
}

// Len はキーの数を返します
func (f FlatRecord) Len() int {
	return len(f.Keys)
}

// Table は画面に表示するテーブルです
type Table struct {
	Headers []string
	Rows    [][]string
}

// State は画面の状態遷移の状態です
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticatedIdle
	StateAuthenticatedLoading
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticating:
		return "Authenticating"
	case StateAuthenticatedIdle:
		return "Authenticated-Idle"
	case StateAuthenticatedLoading:
		return "Authenticated-Loading"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ViewState は画面に表示している内容の全体です
type ViewState struct {
	State         State
	Resource      Resource
	Token         string
	Authenticated bool
	Rows          []FlatRecord // nil の場合はまだデータがありません
	Loading       bool
}

// MarshalJSON はキーの順序を保ったままJSONに変換します
func (r RawRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range r.Members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := EncodeJSON(m.Key)
		if err != nil {
			return nil, err
		}
		value, err := EncodeJSON(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeJSON はHTMLエスケープなしでJSONに変換します
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
