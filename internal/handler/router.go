package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/roomstudio/internal/auth"
	"github.com/hitoshi/roomstudio/internal/metrics"
	"github.com/hitoshi/roomstudio/internal/middleware"
	"github.com/hitoshi/roomstudio/internal/report"
)

// Pinger はヘルスチェックで疎通確認する依存のインターフェース。
// sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     auth.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ハンドラー依存
	WebhookHandler *WebhookHandler
	SpaceService   SpaceServiceInterface
	ProfileFinder  ProfileFinder
	Reporter       *report.Reporter

	// 可観測性
	Logger    *slog.Logger
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Metrics
//	認証ルートはさらに Session → RateLimit(General) を通る
//
// Webhookルートはプロバイダーの署名で認証されるため、セッション認証の外に置き、
// 送信元IPキーのレート制限のみを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}

	spaceHandler := NewSpaceHandler(deps.SpaceService, deps.Reporter, deps.Logger)
	profileHandler := NewProfileHandler(deps.ProfileFinder, deps.Logger)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.DB))

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// Webhook受信（署名検証で認証、IPキーのレート制限）
	r.With(deps.RateLimiter.WebhookMiddleware()).
		Post("/api/webhooks/clerk", deps.WebhookHandler.Handle)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/spaces", func(r chi.Router) {
			r.Get("/", spaceHandler.ListSpaces)
			r.Post("/", spaceHandler.CreateSpace)
		})

		r.Get("/api/me", profileHandler.Me)
	})

	return r
}

// newHealthHandler はヘルスチェックのハンドラーを返す。
// DBが設定されている場合は疎通確認を行い、失敗時は503を返す。
func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				middleware.WriteError(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
