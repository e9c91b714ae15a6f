package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(t *testing.T, generalPerMin, webhookPerMin int) *RateLimiter {
	t.Helper()
	config := NewRateLimiterConfig(generalPerMin, webhookPerMin)
	config.CleanupInterval = time.Hour // テスト中のクリーンアップを抑止
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// バースト上限までは許可され、超過後に429が返ることを検証
func TestRateLimiter_General_BurstThenReject(t *testing.T) {
	rl := newTestRateLimiter(t, 3, 60)
	handler := rl.GeneralMiddleware()(okHandler())

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/spaces", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "user_1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := do(); code != http.StatusOK {
			t.Fatalf("リクエスト%d: status = %d, want 200", i+1, code)
		}
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Errorf("バースト超過後のstatus = %d, want 429", code)
	}
}

// ユーザーごとに独立したリミッターであることを検証
func TestRateLimiter_General_PerUserIsolation(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 60)
	handler := rl.GeneralMiddleware()(okHandler())

	do := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/spaces", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("user_a"); code != http.StatusOK {
		t.Fatalf("user_a 1回目: status = %d", code)
	}
	if code := do("user_a"); code != http.StatusTooManyRequests {
		t.Errorf("user_a 2回目: status = %d, want 429", code)
	}
	// 別ユーザーは影響を受けない
	if code := do("user_b"); code != http.StatusOK {
		t.Errorf("user_b 1回目: status = %d, want 200", code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("リミッターエントリ数 = %d, want 2", rl.GeneralLimiterCount())
	}
}

// 未認証コンテキストでは401が返ることを検証
func TestRateLimiter_General_MissingUserID(t *testing.T) {
	rl := newTestRateLimiter(t, 10, 60)
	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/spaces", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// Webhookリミッターが送信元IPをキーにすることを検証
func TestRateLimiter_Webhook_PerIPIsolation(t *testing.T) {
	rl := newTestRateLimiter(t, 120, 1)
	handler := rl.WebhookMiddleware()(okHandler())

	do := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/clerk", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("203.0.113.1:4567"); code != http.StatusOK {
		t.Fatalf("IP1 1回目: status = %d", code)
	}
	if code := do("203.0.113.1:9999"); code != http.StatusTooManyRequests {
		t.Errorf("IP1 2回目: status = %d, want 429 (ポートが違っても同一IP)", code)
	}
	if code := do("203.0.113.2:4567"); code != http.StatusOK {
		t.Errorf("IP2 1回目: status = %d, want 200", code)
	}

	if rl.WebhookLimiterCount() != 2 {
		t.Errorf("リミッターエントリ数 = %d, want 2", rl.WebhookLimiterCount())
	}
}

// 429レスポンスにRetry-Afterヘッダーが付与されることを検証
func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 60)
	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/spaces", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user_1"))

	handler.ServeHTTP(httptest.NewRecorder(), req)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが設定されるべき")
	}
}

// 期限切れエントリがクリーンアップされることを検証
func TestLimiterPool_Cleanup(t *testing.T) {
	pool := newLimiterPool(rate.Limit(1), 1)
	pool.getOrCreate("stale")
	pool.mu.Lock()
	pool.limiters["stale"].lastAccess = time.Now().Add(-time.Hour)
	pool.mu.Unlock()
	pool.getOrCreate("fresh")

	pool.cleanup(10 * time.Minute)

	if pool.count() != 1 {
		t.Errorf("クリーンアップ後のエントリ数 = %d, want 1", pool.count())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"203.0.113.1:4567", "203.0.113.1"},
		{"[2001:db8::1]:4567", "2001:db8::1"},
		{"unparseable", "unparseable"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
