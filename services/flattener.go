package services

import (
	"fmt"
	"strconv"
	"strings"

	"clubhouseexport/models"
)

// FlattenOptions はフラット化の設定です
type FlattenOptions struct {
	// Delimiter はパスの区切り文字です
	Delimiter string
	// Safe が true の場合、配列は展開せずそのまま値として保持します
	Safe bool
}

// DefaultFlattenOptions は画面とCSV出力で使う設定です
var DefaultFlattenOptions = FlattenOptions{Delimiter: ".", Safe: true}

type leaf struct {
	path  []string
	value any
}

// Flatten はネストしたレコードをドット区切りキーの1階層レコードに変換します
func Flatten(record models.RawRecord) models.FlatRecord {
	return FlattenWithOptions(record, DefaultFlattenOptions)
}

// FlattenAll はレコードの列をまとめて変換します
func FlattenAll(records []models.RawRecord) []models.FlatRecord {
	rows := make([]models.FlatRecord, 0, len(records))
	for _, record := range records {
		rows = append(rows, Flatten(record))
	}
	return rows
}

// FlattenWithOptions はオプションを指定してレコードを変換します。
//
// 異なるパスが同じキーに結合される場合（例: {"a.b": 1} と {"a": {"b": 2}}）、
// セグメント数が最も多いパスがキーをそのまま使い、残りはソース順に
// "key#2", "key#3" ... となります。キー数は常に葉の数と一致します。
func FlattenWithOptions(record models.RawRecord, opts FlattenOptions) models.FlatRecord {
	if opts.Delimiter == "" {
		opts.Delimiter = DefaultFlattenOptions.Delimiter
	}

	var leaves []leaf
	collectLeaves(record, nil, opts, &leaves)

	keys := assignKeys(leaves, opts.Delimiter)

	flat := models.FlatRecord{
		Keys:   make([]string, 0, len(leaves)),
		Values: make(map[string]any, len(leaves)),
	}
	for i, l := range leaves {
		flat.Set(keys[i], l.value)
	}
	return flat
}

func collectLeaves(record models.RawRecord, prefix []string, opts FlattenOptions, leaves *[]leaf) {
	for _, m := range record.Members {
		collectValue(m.Value, appendPath(prefix, m.Key), opts, leaves)
	}
}

func collectValue(value any, path []string, opts FlattenOptions, leaves *[]leaf) {
	switch v := value.(type) {
	case models.RawRecord:
		if len(v.Members) > 0 {
			collectLeaves(v, path, opts, leaves)
			return
		}
	case []any:
		if !opts.Safe && len(v) > 0 {
			for i, item := range v {
				collectValue(item, appendPath(path, strconv.Itoa(i)), opts, leaves)
			}
			return
		}
	}
	*leaves = append(*leaves, leaf{path: path, value: value})
}

func appendPath(prefix []string, segment string) []string {
	path := make([]string, len(prefix), len(prefix)+1)
	copy(path, prefix)
	return append(path, segment)
}

// assignKeys は葉ごとに重複しないキーを決定します
func assignKeys(leaves []leaf, delimiter string) []string {
	joined := make([]string, len(leaves))
	groups := make(map[string][]int)
	for i, l := range leaves {
		joined[i] = strings.Join(l.path, delimiter)
		groups[joined[i]] = append(groups[joined[i]], i)
	}

	keys := make([]string, len(leaves))
	assigned := make([]bool, len(leaves))
	used := make(map[string]bool, len(leaves))

	// 各グループで最も深いパスにそのままのキーを割り当てる
	for key, indexes := range groups {
		winner := indexes[0]
		for _, idx := range indexes[1:] {
			if len(leaves[idx].path) > len(leaves[winner].path) {
				winner = idx
			}
		}
		keys[winner] = key
		assigned[winner] = true
		used[key] = true
	}

	// 残りにソース順で連番付きのキーを割り当てる
	next := make(map[string]int)
	for i := range leaves {
		if assigned[i] {
			continue
		}
		n := next[joined[i]]
		if n == 0 {
			n = 2
		}
		candidate := fmt.Sprintf("%s#%d", joined[i], n)
		for used[candidate] {
			n++
			candidate = fmt.Sprintf("%s#%d", joined[i], n)
		}
		next[joined[i]] = n + 1
		keys[i] = candidate
		used[candidate] = true
	}

	return keys
}
