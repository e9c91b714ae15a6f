package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/roomstudio/internal/clerk"
	"github.com/hitoshi/roomstudio/internal/metrics"
	"github.com/hitoshi/roomstudio/internal/middleware"
	"github.com/hitoshi/roomstudio/internal/model"
	"github.com/hitoshi/roomstudio/internal/profile"
)

// memoryProfileRepo はrepository.ProfileRepositoryのインメモリ実装。
// エンドツーエンドのルーターテストで使用する。
type memoryProfileRepo struct {
	profiles map[string]*model.UserProfile
	now      func() time.Time
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{
		profiles: make(map[string]*model.UserProfile),
		now:      time.Now,
	}
}

func (m *memoryProfileRepo) Upsert(ctx context.Context, p *model.UserProfile) error {
	if existing, ok := m.profiles[p.ClerkUserID]; ok {
		clone := *p
		clone.ID = existing.ID
		clone.CreatedAt = existing.CreatedAt
		if clone.LastSignInAt == nil {
			clone.LastSignInAt = existing.LastSignInAt
		}
		m.profiles[p.ClerkUserID] = &clone
		return nil
	}
	clone := *p
	m.profiles[p.ClerkUserID] = &clone
	return nil
}

func (m *memoryProfileRepo) FindByClerkID(ctx context.Context, clerkUserID string) (*model.UserProfile, error) {
	p, ok := m.profiles[clerkUserID]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (m *memoryProfileRepo) TouchLastSignIn(ctx context.Context, clerkUserID string) error {
	p, ok := m.profiles[clerkUserID]
	if !ok {
		return nil
	}
	now := m.now()
	p.LastSignInAt = &now
	p.UpdatedAt = now
	return nil
}

func (m *memoryProfileRepo) DeleteByClerkID(ctx context.Context, clerkUserID string) error {
	delete(m.profiles, clerkUserID)
	return nil
}

// staticVerifier は固定のユーザーIDを返すauth.TokenVerifier。
type staticVerifier struct {
	userID string
}

func (v staticVerifier) Verify(tokenString string) (string, error) {
	return v.userID, nil
}

type routerFixture struct {
	handler http.Handler
	repo    *memoryProfileRepo
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	repo := newMemoryProfileRepo()
	sync := profile.NewSyncService(repo)

	verifier, err := clerk.NewVerifier(webhookTestSecret)
	if err != nil {
		t.Fatalf("NewVerifier が失敗: %v", err)
	}

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	config := middleware.DefaultRateLimiterConfig()
	config.CleanupInterval = time.Hour
	rl := middleware.NewRateLimiter(config)
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		TokenVerifier:     staticVerifier{userID: "user_1"},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		WebhookHandler:    NewWebhookHandler(verifier, sync, nil, collector, logger),
		SpaceService:      &mockSpaceService{},
		ProfileFinder:     repo,
		Logger:            logger,
		Collector:         collector,
		Gatherer:          reg,
	})

	return &routerFixture{handler: router, repo: repo}
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// 認証なしの保護ルートが401になることを検証
func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	f := newRouterFixture(t)

	paths := []string{"/api/spaces", "/api/me"}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, rec.Code)
		}
	}
}

// Bearerトークン付きで保護ルートにアクセスできることを検証
func TestRouter_AuthenticatedSpacesAccess(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/spaces", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

// OPTIONSプリフライトが全ルートで204になることを検証
func TestRouter_CORSPreflight(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/spaces", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

// エンドツーエンド: 正規署名付きsession.createdがlast_sign_in_atを更新し
// 他のフィールドを変更しないことを検証
func TestRouter_EndToEnd_SessionCreatedTouchesLastSignIn(t *testing.T) {
	f := newRouterFixture(t)

	// 既存プロフィールを用意
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.repo.profiles["u1"] = &model.UserProfile{
		ID:          "prof-1",
		ClerkUserID: "u1",
		Email:       "u1@example.com",
		CreatedAt:   created,
	}

	body := []byte(`{"type":"session.created","data":{"user_id":"u1"}}`)
	req := signedWebhookRequest(t, body)

	before := time.Now()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	p := f.repo.profiles["u1"]
	if p.LastSignInAt == nil || p.LastSignInAt.Before(before) {
		t.Errorf("last_sign_in_atが現在時刻に更新されるべき: %v", p.LastSignInAt)
	}
	// 他のフィールドは変更されない
	if p.Email != "u1@example.com" || !p.CreatedAt.Equal(created) || p.ID != "prof-1" {
		t.Errorf("他のフィールドは変更されてはならない: %+v", p)
	}
}

// エンドツーエンド: user.createdの繰り返し適用が1行に収束することを検証
func TestRouter_EndToEnd_UserCreatedIdempotent(t *testing.T) {
	f := newRouterFixture(t)

	body := []byte(`{
		"type": "user.created",
		"data": {
			"id": "user_new",
			"primary_email_address_id": "idn_1",
			"email_addresses": [
				{"id": "idn_1", "email_address": "new@example.com",
				 "verification": {"status": "verified", "strategy": "email_link"}}
			],
			"image_url": "https://img.clerk.com/user_new",
			"created_at": 1700000000000
		}
	}`)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, signedWebhookRequest(t, body))
		if rec.Code != http.StatusOK {
			t.Fatalf("送信%d: status = %d: %s", i+1, rec.Code, rec.Body.String())
		}
	}

	if len(f.repo.profiles) != 1 {
		t.Fatalf("プロフィール行数 = %d, want 1", len(f.repo.profiles))
	}
	p := f.repo.profiles["user_new"]
	if p.ClerkUserID != "user_new" || p.Email != "new@example.com" {
		t.Errorf("profile = %+v", p)
	}
	if !p.CreatedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("CreatedAt = %v, want event timestamp", p.CreatedAt)
	}
}

// エンドツーエンド: user.deletedで行が消え、未知IDはno-opであることを検証
func TestRouter_EndToEnd_UserDeleted(t *testing.T) {
	f := newRouterFixture(t)
	f.repo.profiles["user_gone"] = &model.UserProfile{ID: "prof-1", ClerkUserID: "user_gone"}

	deleteBody := []byte(`{"type":"user.deleted","data":{"id":"user_gone"}}`)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, signedWebhookRequest(t, deleteBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := f.repo.profiles["user_gone"]; ok {
		t.Error("user.deleted後に行が残ってはならない")
	}

	// 存在しないIDの削除はエラーではない
	unknownBody := []byte(`{"type":"user.deleted","data":{"id":"user_never"}}`)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, signedWebhookRequest(t, unknownBody))

	if rec.Code != http.StatusOK {
		t.Errorf("未知IDの削除: status = %d, want 200", rec.Code)
	}
}
