package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"clubhouseexport/models"
	"clubhouseexport/utils"
)

var (
	// ErrInvalidTransition は現在の状態では受け付けられない操作です
	ErrInvalidTransition = errors.New("現在の状態では実行できません")
	// ErrEmptyCredential はトークンが空の場合のエラーです
	ErrEmptyCredential = errors.New("APIトークンが空です")
)

// Gateway はリソースを取得するAPIクライアントです
type Gateway interface {
	FetchResource(ctx context.Context, resource models.Resource) ([]models.RawRecord, error)
}

// GatewayFactory はトークンからGatewayを作成します
type GatewayFactory func(token string) Gateway

// ViewStateMachine は画面の状態を保持し、リソース変更時に再取得を行います。
// 取得はゴルーチンで行い、最新のリクエストIDの応答だけが状態を更新します。
type ViewStateMachine struct {
	ctx        context.Context
	newGateway GatewayFactory
	store      TokenStore

	mu        sync.Mutex
	view      models.ViewState
	gateway   Gateway
	requestID uint64

	wg sync.WaitGroup
}

// NewViewStateMachine は Unauthenticated 状態のステートマシンを作成します
func NewViewStateMachine(ctx context.Context, newGateway GatewayFactory, store TokenStore) *ViewStateMachine {
	return &ViewStateMachine{
		ctx:        ctx,
		newGateway: newGateway,
		store:      store,
		view: models.ViewState{
			State:    models.StateUnauthenticated,
			Resource: models.ResourceMembers,
		},
	}
}

// Start は保存済みのトークンを読み込み、あれば認証を開始します
func (m *ViewStateMachine) Start() error {
	token, ok := m.store.Get()
	if !ok {
		return nil
	}
	utils.LogInfo("保存済みのAPIトークンで認証します")
	return m.SubmitCredential(token)
}

// SubmitCredential はトークンを受け取り、現在のリソースを取得して検証します
func (m *ViewStateMachine) SubmitCredential(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyCredential
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view.State != models.StateUnauthenticated {
		return fmt.Errorf("%w: トークン送信 (状態: %s)", ErrInvalidTransition, m.view.State)
	}

	m.gateway = m.newGateway(token)
	m.view.Token = token
	m.view.State = models.StateAuthenticating
	m.view.Loading = true
	m.startFetchLocked()
	return nil
}

// SelectResource はリソースを変更し、再取得を開始します。
// 同じリソースが選択された場合は何もしません。
func (m *ViewStateMachine) SelectResource(resource models.Resource) error {
	if _, err := models.ParseResource(string(resource)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.view.Authenticated {
		return fmt.Errorf("%w: リソース選択 (状態: %s)", ErrInvalidTransition, m.view.State)
	}
	if m.view.Resource == resource {
		return nil
	}

	m.view.Resource = resource
	m.view.State = models.StateAuthenticatedLoading
	m.view.Loading = true
	m.startFetchLocked()
	return nil
}

// Snapshot は現在の状態のコピーを返します。Rows は丸ごと置き換えられるため共有しても安全です
func (m *ViewStateMachine) Snapshot() models.ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Wait は実行中の取得がすべて終わるまで待ちます
func (m *ViewStateMachine) Wait() {
	m.wg.Wait()
}

func (m *ViewStateMachine) startFetchLocked() {
	m.requestID++
	id := m.requestID
	gateway := m.gateway
	resource := m.view.Resource

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		records, err := gateway.FetchResource(m.ctx, resource)
		var rows []models.FlatRecord
		if err == nil {
			rows = FlattenAll(records)
		}
		m.complete(id, resource, rows, err)
	}()
}

func (m *ViewStateMachine) complete(id uint64, resource models.Resource, rows []models.FlatRecord, err error) {
	m.mu.Lock()

	if id != m.requestID {
		m.mu.Unlock()
		utils.LogDebug("古いレスポンスを破棄します: %s (request %d)", resource, id)
		return
	}

	var persist string
	switch m.view.State {
	case models.StateAuthenticating:
		if err != nil {
			utils.LogWarn("APIトークンの検証に失敗しました: %v", err)
			m.view.State = models.StateUnauthenticated
			m.view.Token = ""
			m.gateway = nil
		} else {
			m.view.State = models.StateAuthenticatedIdle
			m.view.Authenticated = true
			m.view.Rows = rows
			persist = m.view.Token
			utils.LogInfo("認証成功: %s %d 件", resource, len(rows))
		}
	case models.StateAuthenticatedLoading:
		m.view.State = models.StateAuthenticatedIdle
		if err != nil {
			utils.LogWarn("%s の取得に失敗しました: %v", resource, err)
		} else {
			m.view.Rows = rows
			utils.LogInfo("%s を取得しました: %d 件", resource, len(rows))
		}
	}
	m.view.Loading = false
	m.mu.Unlock()

	if persist != "" {
		if err := m.store.Set(persist); err != nil {
			utils.LogWarn("APIトークンの保存に失敗しました: %v", err)
		}
	}
}
