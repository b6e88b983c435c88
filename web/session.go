package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"clubhouseexport/services"
	"clubhouseexport/utils"
)

const (
	sessionCookieName = "session"
	tokenCookieName   = "apiToken"
)

// cookieTokenStore はブラウザのクッキーにトークンを保存します。
// Get はセッション開始時のクッキーの値、Set は次のレスポンスで書き込む値を記録します。
type cookieTokenStore struct {
	secure bool

	mu      sync.Mutex
	initial string
	pending string
}

func newCookieTokenStore(r *http.Request, secure bool) *cookieTokenStore {
	store := &cookieTokenStore{secure: secure}
	if c, err := r.Cookie(tokenCookieName); err == nil {
		store.initial = c.Value
	}
	return store
}

func (s *cookieTokenStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initial, s.initial != ""
}

func (s *cookieTokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = token
	return nil
}

// flush は保存待ちのトークンをクッキーとして書き込みます
func (s *cookieTokenStore) flush(w http.ResponseWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" {
		return
	}
	// 有効期限はブラウザのデフォルト（セッションクッキー）に任せる
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    s.pending,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.initial = s.pending
	s.pending = ""
}

type session struct {
	id      string
	machine *services.ViewStateMachine
	tokens  *cookieTokenStore

	lastSeen time.Time
}

const (
	defaultSessionTTL  = 30 * time.Minute
	defaultMaxSessions = 1000
)

// sessionRegistry はブラウザごとのステートマシンを保持します。
// 一定時間アクセスのないセッションと上限を超えた古いセッションは破棄されます。
type sessionRegistry struct {
	ctx        context.Context
	newGateway services.GatewayFactory
	secure     bool

	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	// 破棄済みでも取得中のセッション。wait で待つために残す
	retired []*session
}

func newSessionRegistry(ctx context.Context, newGateway services.GatewayFactory, secure bool) *sessionRegistry {
	return &sessionRegistry{
		ctx:         ctx,
		newGateway:  newGateway,
		secure:      secure,
		ttl:         defaultSessionTTL,
		maxSessions: defaultMaxSessions,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// find は既存のセッションを返します。作成はしません
func (reg *sessionRegistry) find(r *http.Request) (*session, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.findLocked(r)
}

func (reg *sessionRegistry) findLocked(r *http.Request) (*session, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, false
	}
	sess, ok := reg.sessions[c.Value]
	if !ok {
		return nil, false
	}
	if reg.now().Sub(sess.lastSeen) > reg.ttl {
		reg.removeLocked(sess)
		return nil, false
	}
	sess.lastSeen = reg.now()
	return sess, true
}

// lookup はリクエストのセッションを返します。なければ作成し、保存済みトークンで認証を開始します
func (reg *sessionRegistry) lookup(w http.ResponseWriter, r *http.Request) *session {
	return reg.lookupOrCreate(w, r, true)
}

// lookupOrCreate は autoStart が false の場合、新しいセッションで保存済みトークンを使いません
func (reg *sessionRegistry) lookupOrCreate(w http.ResponseWriter, r *http.Request, autoStart bool) *session {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if sess, ok := reg.findLocked(r); ok {
		return sess
	}

	reg.evictLocked()

	tokens := newCookieTokenStore(r, reg.secure)
	sess := &session{
		id:       uuid.NewString(),
		machine:  services.NewViewStateMachine(reg.ctx, reg.newGateway, tokens),
		tokens:   tokens,
		lastSeen: reg.now(),
	}
	reg.sessions[sess.id] = sess

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   reg.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if autoStart {
		if err := sess.machine.Start(); err != nil {
			utils.LogWarn("保存済みトークンでの認証を開始できません: %v", err)
		}
	}

	return sess
}

// evictLocked は期限切れのセッションを破棄し、新しいセッション1つ分の空きを作ります
func (reg *sessionRegistry) evictLocked() {
	now := reg.now()
	for _, sess := range reg.sessions {
		if now.Sub(sess.lastSeen) > reg.ttl {
			reg.removeLocked(sess)
		}
	}

	for reg.maxSessions > 0 && len(reg.sessions) >= reg.maxSessions {
		var oldest *session
		for _, sess := range reg.sessions {
			if oldest == nil || sess.lastSeen.Before(oldest.lastSeen) {
				oldest = sess
			}
		}
		reg.removeLocked(oldest)
	}

	// 取得が終わったものは待つ必要がない
	active := reg.retired[:0]
	for _, sess := range reg.retired {
		if sess.machine.Snapshot().Loading {
			active = append(active, sess)
		}
	}
	reg.retired = active
}

func (reg *sessionRegistry) removeLocked(sess *session) {
	delete(reg.sessions, sess.id)
	if sess.machine.Snapshot().Loading {
		reg.retired = append(reg.retired, sess)
	}
	utils.LogDebug("セッションを破棄しました: %s", sess.id)
}

func (reg *sessionRegistry) count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.sessions)
}

// wait は全セッションの実行中の取得を待ちます
func (reg *sessionRegistry) wait() {
	reg.mu.Lock()
	sessions := make([]*session, 0, len(reg.sessions)+len(reg.retired))
	for _, sess := range reg.sessions {
		sessions = append(sessions, sess)
	}
	sessions = append(sessions, reg.retired...)
	reg.mu.Unlock()

	for _, sess := range sessions {
		sess.machine.Wait()
	}
}
