// Package profile はIDプロバイダーのイベントをローカルプロフィールに同期する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roomstudio/internal/clerk"
	"github.com/hitoshi/roomstudio/internal/model"
	"github.com/hitoshi/roomstudio/internal/repository"
)

// SyncService はWebhookイベントをプロフィールストアに反映する。
// 1イベントにつきストア変更は必ず1回で、リトライやバッチ処理は行わない。
type SyncService struct {
	repo repository.ProfileRepository
	now  func() time.Time // テストで時刻を固定するためのフック
}

// NewSyncService はSyncServiceを生成する。
func NewSyncService(repo repository.ProfileRepository) *SyncService {
	return &SyncService{
		repo: repo,
		now:  time.Now,
	}
}

// Apply はパース済みイベントをストアに適用する。
// Ignoredイベントはno-op。ストア失敗は*model.StoreErrorでラップして返す。
func (s *SyncService) Apply(ctx context.Context, evt *clerk.Event) error {
	switch {
	case evt.Ignored:
		slog.Debug("ignoring webhook event", slog.String("event_type", string(evt.Type)))
		return nil

	case evt.User != nil:
		return s.applyUserEvent(ctx, evt.Type, evt.User)

	case evt.Session != nil:
		if err := s.repo.TouchLastSignIn(ctx, evt.Session.UserID); err != nil {
			return model.NewStoreError("touch_last_sign_in", err)
		}
		slog.Info("last sign in updated", slog.String("clerk_user_id", evt.Session.UserID))
		return nil

	case evt.Deleted != nil:
		if err := s.repo.DeleteByClerkID(ctx, evt.Deleted.ID); err != nil {
			return model.NewStoreError("delete_profile", err)
		}
		slog.Info("user profile deleted", slog.String("clerk_user_id", evt.Deleted.ID))
		return nil

	default:
		return fmt.Errorf("event %q carries no payload", evt.Type)
	}
}

// applyUserEvent はuser.created / user.updatedをUPSERTに変換する。
// created_atはuser.createdのときのみイベントの値を採用し、
// user.updatedの挿入フォールバックでは現在時刻を使う（衝突時はDB側で保持される）。
func (s *SyncService) applyUserEvent(ctx context.Context, eventType clerk.EventType, data *clerk.UserData) error {
	now := s.now()

	p := &model.UserProfile{
		ID:           uuid.New().String(),
		ClerkUserID:  data.ID,
		Email:        primaryEmailAddress(data),
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		AvatarURL:    deriveAvatarURL(data),
		ProviderType: deriveProviderType(data),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if eventType == clerk.EventUserCreated {
		p.CreatedAt = time.UnixMilli(data.CreatedAt)
	}

	if data.LastSignInAt != nil {
		signIn := time.UnixMilli(*data.LastSignInAt)
		p.LastSignInAt = &signIn
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return model.NewStoreError("upsert_profile", err)
	}

	slog.Info("user profile synced",
		slog.String("clerk_user_id", p.ClerkUserID),
		slog.String("event_type", string(eventType)),
	)
	return nil
}

// primaryEmailAddress はプライマリメールのアドレスを返す。不在なら空文字。
func primaryEmailAddress(data *clerk.UserData) string {
	if primary := data.PrimaryEmail(); primary != nil {
		return primary.EmailAddress
	}
	return ""
}

// deriveProviderType はプライマリメールの認証手段からプロバイダー種別を導出する。
// from_oauth_google → google、email_link → email、それ以外はnil。
func deriveProviderType(data *clerk.UserData) *model.ProviderType {
	var pt model.ProviderType
	switch data.VerificationStrategy() {
	case clerk.StrategyOAuthGoogle:
		pt = model.ProviderGoogle
	case clerk.StrategyEmailLink:
		pt = model.ProviderEmail
	default:
		return nil
	}
	return &pt
}

// deriveAvatarURL はアバターURLを導出する。
// Google OAuthの場合は外部アカウントのアバター、メールリンクの場合はイベント自身の
// image_url、それ以外はnil。
func deriveAvatarURL(data *clerk.UserData) *string {
	switch data.VerificationStrategy() {
	case clerk.StrategyOAuthGoogle:
		if len(data.ExternalAccounts) > 0 && data.ExternalAccounts[0].AvatarURL != "" {
			return &data.ExternalAccounts[0].AvatarURL
		}
	case clerk.StrategyEmailLink:
		if data.ImageURL != "" {
			return &data.ImageURL
		}
	}
	return nil
}
