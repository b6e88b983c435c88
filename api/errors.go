package api

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// プロキシなどが返すHTMLのエラーページからタグを取り除くためのポリシー
var errorBodyPolicy = bluemonday.StrictPolicy()

// AuthError はAPIトークンが拒否された場合のエラーです
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("認証失敗 (HTTP %d): %s", e.StatusCode, e.Body)
}

// NetworkError は通信エラーまたはAPIエラーです
type NetworkError struct {
	Op         string
	StatusCode int // 通信自体が失敗した場合は0
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s 失敗 (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s 失敗: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuthError はエラーが認証エラーかどうかを判定します
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNetworkError はエラーが通信エラーかどうかを判定します
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// errorBody はエラーレスポンスの本文をログ向けの1行のテキストにします
func errorBody(raw []byte) string {
	text := html.UnescapeString(string(errorBodyPolicy.SanitizeBytes(raw)))
	return strings.Join(strings.Fields(text), " ")
}
