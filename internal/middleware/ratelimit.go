package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 認証済みAPI全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // 認証済みAPI全般のバーストサイズ
	WebhookRate     rate.Limit    // Webhook受信のレート（req/sec）。60/60 = 1 req/sec
	WebhookBurst    int           // Webhook受信のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig はreq/min単位の設定値からRateLimiterConfigを組み立てる。
func NewRateLimiterConfig(generalPerMin, webhookPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMin) / 60.0),
		GeneralBurst:    generalPerMin,
		WebhookRate:     rate.Limit(float64(webhookPerMin) / 60.0),
		WebhookBurst:    webhookPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、Webhook受信 60 req/min/IP
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 60)
}

// keyedLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterPool はキー（ユーザーIDまたはIPアドレス）ごとのリミッター集合。
type limiterPool struct {
	mu       sync.RWMutex
	limiters map[string]*keyedLimiter
	r        rate.Limit
	burst    int
}

func newLimiterPool(r rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		limiters: make(map[string]*keyedLimiter),
		r:        r,
		burst:    burst,
	}
}

// getOrCreate はキーのリミッターを取得または作成する。
func (p *limiterPool) getOrCreate(key string) *rate.Limiter {
	p.mu.RLock()
	kl, exists := p.limiters[key]
	p.mu.RUnlock()

	if exists {
		p.mu.Lock()
		kl.lastAccess = time.Now()
		p.mu.Unlock()
		return kl.limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// ダブルチェック
	if kl, exists := p.limiters[key]; exists {
		kl.lastAccess = time.Now()
		return kl.limiter
	}

	limiter := rate.NewLimiter(p.r, p.burst)
	p.limiters[key] = &keyedLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// count は現在管理されているエントリ数を返す。
func (p *limiterPool) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.limiters)
}

// cleanup は最終アクセス時刻がttlを超えたエントリを削除する。
func (p *limiterPool) cleanup(ttl time.Duration) {
	now := time.Now()
	p.mu.Lock()
	for key, kl := range p.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(p.limiters, key)
		}
	}
	p.mu.Unlock()
}

// RateLimiter はキーごとのレート制限を管理する。
// 認証済みAPI（ユーザーIDキー）とWebhook受信（送信元IPキー）の2種類を提供する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterPool
	webhook *limiterPool
	stopCh  chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterPool(config.GeneralRate, config.GeneralBurst),
		webhook: newLimiterPool(config.WebhookRate, config.WebhookBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware は認証済みAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（SessionMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !rl.general.getOrCreate(userID).Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("key", userID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WebhookMiddleware はWebhook受信エンドポイント専用のレート制限ミドルウェアを返す。
// 認証コンテキストを持たないため、送信元IPアドレスをキーにする。
func (rl *RateLimiter) WebhookMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			if !rl.webhook.getOrCreate(key).Allow() {
				writeRateLimitResponse(w, rl.config.WebhookRate)
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", "webhook"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// WebhookLimiterCount は現在管理されているWebhookリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) WebhookLimiterCount() int {
	return rl.webhook.count()
}

// clientIP はリクエストの送信元IPアドレスを返す。
// ポート番号を除去できない場合はRemoteAddrをそのまま使う。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ttl := rl.config.CleanupInterval * 2
			rl.general.cleanup(ttl)
			rl.webhook.cleanup(ttl)
		case <-rl.stopCh:
			return
		}
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteError(w, http.StatusTooManyRequests, "too many requests")
}
