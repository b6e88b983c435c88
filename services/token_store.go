package services

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
)

// TokenStore はAPIトークンを保存・取得します。検証は行いません
type TokenStore interface {
	Get() (string, bool)
	Set(token string) error
}

// FileTokenStore はトークンをファイルに保存します
type FileTokenStore struct {
	path string
}

// NewFileTokenStore は新しいファイルトークンストアを作成します
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Get は保存済みのトークンを返します
func (s *FileTokenStore) Get() (string, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

// Set はトークンを保存します
func (s *FileTokenStore) Set(token string) error {
	if token == "" {
		return errors.New("空のトークンは保存できません")
	}
	if err := atomic.WriteFile(s.path, strings.NewReader(token+"\n")); err != nil {
		return fmt.Errorf("トークン保存エラー: %w", err)
	}
	// 新規ファイルのパーミッションは設定されないため明示する
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("トークンファイル権限設定エラー: %w", err)
	}
	return nil
}

// ResolveToken は候補の中から最初の空でないトークンを返し、なければ保存済みトークンを返します
func ResolveToken(store TokenStore, candidates ...string) string {
	for _, token := range candidates {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	if token, ok := store.Get(); ok {
		return token
	}
	return ""
}
