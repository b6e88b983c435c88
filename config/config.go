package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Clubhouse API設定
	APIURL   string `yaml:"api_url"`
	APIToken string `yaml:"api_token"`

	// Webサーバー設定
	ListenAddr   string `yaml:"listen_addr"`
	CookieSecure bool   `yaml:"cookie_secure"`

	// ファイルパス
	TokenFile string `yaml:"token_file"`
	LogFile   string `yaml:"log_file"`

	LogLevel string `yaml:"log_level"`

	// HTTPリクエストのタイムアウト
	RequestTimeout    time.Duration `yaml:"-"`
	RawRequestTimeout string        `yaml:"request_timeout"`
}

const (
	defaultAPIURL         = "https://api.clubhouse.io/api/v3"
	defaultListenAddr     = "127.0.0.1:8080"
	defaultTokenFile      = ".clubhouse_token"
	defaultLogLevel       = "info"
	defaultRequestTimeout = 30 * time.Second
)

// LoadConfig は.envファイル、YAMLファイル、環境変数の順に設定を読み込みます
func LoadConfig() (*Config, error) {
	// .envファイルを読み込む
	_ = godotenv.Load()

	config := &Config{}

	if path := os.Getenv("CLUBHOUSE_CONFIG"); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	config.APIURL = strings.TrimRight(getEnvWithDefault("CLUBHOUSE_API_URL", withDefault(config.APIURL, defaultAPIURL)), "/")
	config.APIToken = getEnvWithDefault("CLUBHOUSE_API_TOKEN", config.APIToken)
	config.ListenAddr = getEnvWithDefault("LISTEN_ADDR", withDefault(config.ListenAddr, defaultListenAddr))
	config.CookieSecure = getEnvAsBoolWithDefault("COOKIE_SECURE", config.CookieSecure)
	config.TokenFile = getEnvWithDefault("TOKEN_FILE", withDefault(config.TokenFile, defaultTokenFile))
	config.LogFile = getEnvWithDefault("LOG_FILE", config.LogFile)
	config.LogLevel = strings.ToLower(getEnvWithDefault("LOG_LEVEL", withDefault(config.LogLevel, defaultLogLevel)))

	config.RawRequestTimeout = getEnvWithDefault("REQUEST_TIMEOUT", config.RawRequestTimeout)
	config.RequestTimeout = defaultRequestTimeout
	if config.RawRequestTimeout != "" {
		d, err := time.ParseDuration(config.RawRequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("REQUEST_TIMEOUT の解析エラー %q: %w", config.RawRequestTimeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("REQUEST_TIMEOUT は正の値である必要があります: %s", config.RawRequestTimeout)
		}
		config.RequestTimeout = d
	}

	return config, nil
}

// loadFile はYAML設定ファイルを読み込みます
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイル読み込みエラー: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイル解析エラー: %w", err)
	}

	return nil
}

func withDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を真偽値として取得
func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
