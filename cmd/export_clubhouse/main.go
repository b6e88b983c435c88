package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"clubhouseexport/api"
	"clubhouseexport/config"
	"clubhouseexport/services"
	"clubhouseexport/utils"
	"clubhouseexport/web"
)

func main() {
	// コマンドラインフラグの定義
	addr := flag.String("addr", "", "待ち受けアドレス（指定しない場合は設定ファイルの値を使用）")
	help := flag.BoolP("help", "h", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	if err := utils.SetupLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		utils.LogError("ロガーの初期化に失敗しました: %v", err)
		os.Exit(1)
	}
	defer utils.CloseFile()

	// 待ち受けアドレスの上書き（指定された場合のみ）
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	utils.LogInfo("Clubhouse データエクスポート (v1.0.0)")
	utils.LogInfo("設定読み込み完了 (API: %s)", cfg.APIURL)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// トークンごとにAPIクライアントを作り直す
	newGateway := func(token string) services.Gateway {
		return api.NewClubhouseClient(cfg.APIURL, token, cfg.RequestTimeout)
	}

	server, err := web.NewServer(ctx, newGateway, cfg.CookieSecure)
	if err != nil {
		utils.LogError("サーバーの初期化に失敗しました: %v", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		utils.LogInfo("http://%s で待ち受けています", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.LogError("サーバーエラー: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	utils.LogInfo("シャットダウンしています")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError("シャットダウンエラー: %v", err)
	}
	server.Wait()
	utils.LogInfo("サーバーを停止しました")
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Clubhouse データエクスポート

使用方法:
  %s [オプション]

オプション:
  --addr=HOST:PORT    待ち受けアドレスを指定する
  -h, --help          このヘルプを表示する

環境変数:
  CLUBHOUSE_API_URL   Clubhouse API URL (デフォルト: https://api.clubhouse.io/api/v3)
  CLUBHOUSE_CONFIG    YAML設定ファイルのパス (任意)
  LISTEN_ADDR         待ち受けアドレス (デフォルト: 127.0.0.1:8080)
  COOKIE_SECURE       クッキーにSecure属性を付ける (デフォルト: false)
  REQUEST_TIMEOUT     APIリクエストのタイムアウト (デフォルト: 30s)
  LOG_LEVEL           ログレベル debug/info/warn/error (デフォルト: info)
  LOG_FILE            ログファイルのパス (任意)

説明:
  ブラウザで画面を開き、APIトークンを入力するとリソースの一覧を表示します。
  表示は先頭100行までですが、ダウンロードしたCSVには全行が含まれます。
`, os.Args[0])
}
