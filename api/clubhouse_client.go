package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clubhouseexport/models"
	"clubhouseexport/utils"
)

// ClubhouseClient はClubhouse APIとのやり取りを処理します
type ClubhouseClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClubhouseClient は新しいClubhouseクライアントを作成します。
// トークンごとに作り直して使います。
func NewClubhouseClient(baseURL, token string, timeout time.Duration) *ClubhouseClient {
	return &ClubhouseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchResource はリソースの種類に応じてコレクション一覧またはストーリー検索を実行します
func (c *ClubhouseClient) FetchResource(ctx context.Context, resource models.Resource) ([]models.RawRecord, error) {
	if storyType := resource.StoryType(); storyType != "" {
		return c.SearchStories(ctx, storyType)
	}
	return c.ListResource(ctx, string(resource))
}

// ListResource はコレクション一覧を取得します
func (c *ClubhouseClient) ListResource(ctx context.Context, name string) ([]models.RawRecord, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	return c.do(req, name+" 一覧取得")
}

// SearchStories はstory_typeを指定してストーリーを検索します
func (c *ClubhouseClient) SearchStories(ctx context.Context, storyType string) ([]models.RawRecord, error) {
	url := fmt.Sprintf("%s/stories/search", c.baseURL)

	payload := map[string]interface{}{
		"story_type": storyType,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, storyType+" ストーリー検索")
}

// CheckAuth はトークンが有効かどうかを確認します
func (c *ClubhouseClient) CheckAuth(ctx context.Context) error {
	_, err := c.ListResource(ctx, string(models.ResourceMembers))
	return err
}

func (c *ClubhouseClient) do(req *http.Request, op string) ([]models.RawRecord, error) {
	req.Header.Set("Clubhouse-Token", c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	utils.LogDebug("%s %s -> %d (%s)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: errorBody(body)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(errorBody(body)),
		}
	}

	records, err := DecodeRecords(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	return records, nil
}
