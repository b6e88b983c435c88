package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"clubhouseexport/api"
	"clubhouseexport/config"
	"clubhouseexport/services"
	"clubhouseexport/utils"
)

func main() {
	// コマンドラインフラグの定義
	token := flag.String("token", "", "確認するAPIトークン（指定しない場合は環境変数または保存済みトークンを使用）")
	save := flag.Bool("save", false, "認証に成功したトークンをトークンファイルに保存する")
	help := flag.BoolP("help", "h", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.LogInfo("Clubhouse認証確認ツール")

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

	store := services.NewFileTokenStore(cfg.TokenFile)
	apiToken := services.ResolveToken(store, *token, cfg.APIToken)
	if apiToken == "" {
		utils.LogError("APIトークンが指定されていません。")
		os.Exit(1)
	}

	// Clubhouseクライアントの初期化
	client := api.NewClubhouseClient(cfg.APIURL, apiToken, cfg.RequestTimeout)

	// 認証チェック
	utils.LogInfo("Clubhouse APIの認証を確認しています...")
	if err := client.CheckAuth(context.Background()); err != nil {
		if api.IsAuthError(err) {
			utils.LogError("Clubhouse認証エラー: %v", err)
			utils.LogError("APIトークンを確認してください。")
		} else {
			utils.LogError("Clubhouse APIに接続できません: %v", err)
		}
		os.Exit(1)
	}

	utils.LogInfo("Clubhouse認証成功！ 接続先: %s", cfg.APIURL)

	if *save {
		if err := store.Set(apiToken); err != nil {
			utils.LogError("トークンの保存に失敗しました: %v", err)
			os.Exit(1)
		}
		utils.LogInfo("トークンを %s に保存しました", cfg.TokenFile)
	}
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Clubhouse認証確認ツール

使用方法:
  %s [オプション]

オプション:
  --token=TOKEN       確認するAPIトークンを指定する
  --save              認証に成功したトークンを保存する
  -h, --help          このヘルプを表示する

環境変数:
  CLUBHOUSE_API_URL   Clubhouse API URL (デフォルト: https://api.clubhouse.io/api/v3)
  CLUBHOUSE_API_TOKEN Clubhouse APIトークン
  TOKEN_FILE          保存済みトークンのファイル (デフォルト: .clubhouse_token)

説明:
  このツールはClubhouse APIトークンが有効かどうかを確認します。
  認証が成功すれば、他のツールも正常に動作する可能性が高いです。
`, os.Args[0])
}
