package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clubhouseexport/models"
	"clubhouseexport/services"
	"clubhouseexport/utils"
)

//go:embed templates/index.html
var templateFS embed.FS

// Server はエクスポート画面を提供するWebサーバーです
type Server struct {
	sessions *sessionRegistry
	exporter *services.CSVExporter
	tmpl     *template.Template
}

type pageData struct {
	View      models.ViewState
	Table     models.Table
	HasRows   bool
	RowCount  int
	ShowToken bool
	Resources []models.Resource
}

// NewServer は新しいサーバーを作成します。ctx はバックグラウンドの取得処理に使われます
func NewServer(ctx context.Context, newGateway services.GatewayFactory, cookieSecure bool) (*Server, error) {
	// セルはFormatCellの文字列をそのまま出力し、エスケープはhtml/templateに任せる
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("テンプレート解析エラー: %w", err)
	}

	return &Server{
		sessions: newSessionRegistry(ctx, newGateway, cookieSecure),
		exporter: services.NewCSVExporter(),
		tmpl:     tmpl,
	}, nil
}

// Handler はHTTPハンドラーを返します
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/", s.handleIndex)
	r.Post("/token", s.handleToken)
	r.Post("/resource/{resource}", s.handleSelectResource)
	r.Get("/export", s.handleExport)

	return r
}

// Wait は実行中の取得がすべて終わるまで待ちます
func (s *Server) Wait() {
	s.sessions.wait()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.lookup(w, r)
	sess.tokens.flush(w)

	view := sess.machine.Snapshot()
	data := pageData{
		View:      view,
		Table:     services.RenderTable(view.Rows),
		HasRows:   view.Rows != nil,
		RowCount:  len(view.Rows),
		ShowToken: !view.Authenticated,
		Resources: models.Resources,
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		utils.LogError("画面描画エラー: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	// 入力されたトークンを優先するため、新しいセッションでは保存済みトークンで認証しない
	sess := s.sessions.lookupOrCreate(w, r, false)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if err := sess.machine.SubmitCredential(r.PostForm.Get("token")); err != nil {
		utils.LogWarn("トークン送信を受け付けませんでした: %v", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSelectResource(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.lookup(w, r)
	sess.tokens.flush(w)

	resource, err := models.ParseResource(chi.URLParam(r, "resource"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if err := sess.machine.SelectResource(resource); err != nil {
		if !errors.Is(err, services.ErrInvalidTransition) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.LogWarn("リソース選択を受け付けませんでした: %v", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.find(r)
	if !ok {
		http.Error(w, "no data", http.StatusNotFound)
		return
	}
	sess.tokens.flush(w)

	view := sess.machine.Snapshot()
	if view.Rows == nil {
		http.Error(w, "no data", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, view.Rows); err != nil {
		utils.LogError("CSV出力エラー: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	filename := s.exporter.FileName(view.Resource)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())

	utils.LogInfo("CSVをダウンロードしました: %s (%d 行)", filename, len(view.Rows))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		utils.LogDebug("%s %s %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
