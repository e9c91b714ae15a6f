// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/roomstudio/internal/auth"
	"github.com/hitoshi/roomstudio/internal/clerk"
	"github.com/hitoshi/roomstudio/internal/config"
	"github.com/hitoshi/roomstudio/internal/database"
	"github.com/hitoshi/roomstudio/internal/handler"
	"github.com/hitoshi/roomstudio/internal/logger"
	"github.com/hitoshi/roomstudio/internal/metrics"
	"github.com/hitoshi/roomstudio/internal/middleware"
	"github.com/hitoshi/roomstudio/internal/profile"
	"github.com/hitoshi/roomstudio/internal/report"
	"github.com/hitoshi/roomstudio/internal/repository"
	"github.com/hitoshi/roomstudio/internal/security"
	"github.com/hitoshi/roomstudio/internal/space"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在する場合）と環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envファイルの読み込み（ローカル開発用。既存の環境変数は上書きしない）
	_ = godotenv.Load()

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログの初期化（LOG_LEVELを反映する）
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("app_env", cfg.AppEnv),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	spaceRepo := repository.NewPostgresSpaceRepo(db)

	// 3. 署名・トークン検証の初期化
	webhookVerifier, err := clerk.NewVerifier(cfg.ClerkWebhookSecret)
	if err != nil {
		return fmt.Errorf("failed to init webhook verifier: %w", err)
	}

	tokenVerifier, err := auth.NewClerkVerifier(cfg.ClerkPEMPublicKey)
	if err != nil {
		return fmt.Errorf("failed to init token verifier: %w", err)
	}

	// 4. ドメインサービスの初期化
	syncService := profile.NewSyncService(profileRepo)
	spaceService := space.NewService(
		profileRepo, spaceRepo,
		security.NewTextSanitizer(), security.NewImageURLGuard(),
	)

	// 5. 可観測性の初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. エラーレポーターの初期化（設定されたシンクのみ組み込む）
	reporter := buildReporter(cfg)
	reporter.SetRecorder(collector)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWebhook),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenVerifier:     tokenVerifier,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		WebhookHandler: handler.NewWebhookHandler(
			webhookVerifier, syncService, reporter, collector, slog.Default(),
		),
		SpaceService:  spaceService,
		ProfileFinder: profileRepo,
		Reporter:      reporter,

		Logger:    slog.Default(),
		Collector: collector,
		Gatherer:  registry,

		DB: db,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildReporter は設定からエラーレポーターを組み立てる。
// Webhook URLやAPIトークンが未設定のシンクはスキップし、
// APP_ENVがproduction以外の場合は送信自体を無効にする。
func buildReporter(cfg *config.Config) *report.Reporter {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	var sinks []report.Sink
	if cfg.NotionAPIToken != "" && cfg.NotionDatabaseID != "" {
		sinks = append(sinks, report.NewNotionSink(
			httpClient, slog.Default(),
			cfg.NotionAPIToken, cfg.NotionDatabaseID, cfg.ServerAddress,
		))
	} else if cfg.IsProduction() {
		slog.Warn("notion sink disabled: NOTION_API_TOKEN or NOTION_DATABASE_ID is not set")
	}
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, report.NewDiscordSink(
			httpClient, slog.Default(), cfg.DiscordWebhookURL,
		))
	} else if cfg.IsProduction() {
		slog.Warn("discord sink disabled: DISCORD_WEBHOOK_URL is not set")
	}

	enabled := cfg.IsProduction() && len(sinks) > 0
	slog.Info("error reporter configured",
		slog.Bool("enabled", enabled),
		slog.Int("sinks", len(sinks)),
	)

	return report.NewReporter(slog.Default(), enabled, cfg.ReportTimeout, sinks...)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
