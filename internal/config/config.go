// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity provider (Clerk)
	ClerkWebhookSecret string // svix署名検証用の共有シークレット（whsec_プレフィックス付き）
	ClerkPEMPublicKey  string // セッショントークン（RS256 JWT）検証用のPEM公開鍵

	// Error reporting
	AppEnv            string // "production" のときのみエラーレポーターが有効
	ServerAddress     string // レポート内の表示専用（実際のバインド先ではない）
	DiscordWebhookURL string
	NotionAPIToken    string
	NotionDatabaseID  string
	ReportTimeout     time.Duration

	// Rate Limit（req/min単位）
	RateLimitGeneral int
	RateLimitWebhook int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ClerkWebhookSecret = os.Getenv("CLERK_WEBHOOK_SECRET")
	if cfg.ClerkWebhookSecret == "" {
		missing = append(missing, "CLERK_WEBHOOK_SECRET")
	}

	cfg.ClerkPEMPublicKey = os.Getenv("CLERK_PEM_PUBLIC_KEY")
	if cfg.ClerkPEMPublicKey == "" {
		missing = append(missing, "CLERK_PEM_PUBLIC_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.ServerAddress = getEnvString("SERVER_ADDRESS", "")
	cfg.DiscordWebhookURL = getEnvString("DISCORD_WEBHOOK_URL", "")
	cfg.NotionAPIToken = getEnvString("NOTION_API_TOKEN", "")
	cfg.NotionDatabaseID = getEnvString("NOTION_DATABASE_ID", "")
	cfg.ReportTimeout = getEnvDuration("REPORT_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWebhook = getEnvInt("RATE_LIMIT_WEBHOOK", 60)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// IsProduction は本番環境かどうかを返す。
// エラーレポーターの有効/無効の判定に使用する。
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
