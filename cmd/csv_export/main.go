package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"clubhouseexport/api"
	"clubhouseexport/config"
	"clubhouseexport/models"
	"clubhouseexport/services"
	"clubhouseexport/utils"
)

func main() {
	// コマンドラインフラグの定義
	resourceName := flag.StringP("resource", "r", string(models.ResourceMembers), "出力するリソース (members, epics, projects, labels, features, bugs)")
	outputDir := flag.StringP("output-dir", "o", ".", "CSVの出力先ディレクトリ")
	token := flag.String("token", "", "APIトークン（指定しない場合は環境変数または保存済みトークンを使用）")
	expandArrays := flag.Bool("expand-arrays", false, "配列もインデックス付きのキーに展開する")
	help := flag.BoolP("help", "h", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	// 開始時間の記録
	startTime := time.Now()

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

	utils.LogInfo("Clubhouse → CSV 出力ツール")

	resource, err := models.ParseResource(*resourceName)
	if err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}

	apiToken := services.ResolveToken(services.NewFileTokenStore(cfg.TokenFile), *token, cfg.APIToken)
	if apiToken == "" {
		utils.LogError("APIトークンが指定されていません。")
		os.Exit(1)
	}

	// Clubhouseクライアントの初期化
	client := api.NewClubhouseClient(cfg.APIURL, apiToken, cfg.RequestTimeout)

	utils.LogInfo("%s を取得しています...", resource)
	records, err := client.FetchResource(context.Background(), resource)
	if err != nil {
		utils.LogError("%s の取得に失敗しました: %v", resource, err)
		os.Exit(1)
	}

	opts := services.DefaultFlattenOptions
	opts.Safe = !*expandArrays

	rows := make([]models.FlatRecord, 0, len(records))
	for _, record := range records {
		rows = append(rows, services.FlattenWithOptions(record, opts))
	}

	// 画面からのダウンロードと同じく、0件の場合は空のファイルを作成する
	if len(rows) == 0 {
		utils.LogWarn("%s にデータがありません。空のCSVを出力します", resource)
	}

	path, err := services.NewCSVExporter().WriteFile(*outputDir, resource, rows)
	if err != nil {
		utils.LogError("CSV書き込みエラー: %v", err)
		os.Exit(1)
	}

	// 合計実行時間の表示
	utils.LogInfo("出力完了: %s (%d 行, %d 列)", path, len(rows), len(services.UnionHeaders(rows)))
	utils.TrackTime(startTime, "CSV出力")
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Clubhouse → CSV 出力ツール

使用方法:
  %s [オプション]

オプション:
  -r, --resource=NAME     出力するリソース (members, epics, projects, labels, features, bugs)
  -o, --output-dir=DIR    CSVの出力先ディレクトリ (デフォルト: .)
  --token=TOKEN           APIトークンを指定する
  --expand-arrays         配列もインデックス付きのキーに展開する
  -h, --help              このヘルプを表示する

データが0件の場合は空のCSVファイルを出力します。

環境変数:
  CLUBHOUSE_API_URL   Clubhouse API URL (デフォルト: https://api.clubhouse.io/api/v3)
  CLUBHOUSE_API_TOKEN Clubhouse APIトークン
  TOKEN_FILE          保存済みトークンのファイル (デフォルト: .clubhouse_token)

例:
  # メンバー一覧を出力
  %s

  # バグのストーリーを出力
  %s -r bugs -o exports
`, os.Args[0], os.Args[0], os.Args[0])
}
