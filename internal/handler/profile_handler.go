package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/roomstudio/internal/middleware"
	"github.com/hitoshi/roomstudio/internal/model"
)

// ProfileFinder はプロフィールの検索に必要なインターフェース。
// repository.ProfileRepositoryの部分集合として定義する。
type ProfileFinder interface {
	FindByClerkID(ctx context.Context, clerkUserID string) (*model.UserProfile, error)
}

// ProfileHandler は認証済みユーザーのプロフィール取得のHTTPハンドラー。
type ProfileHandler struct {
	finder ProfileFinder
	logger *slog.Logger
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(finder ProfileFinder, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		finder: finder,
		logger: logger,
	}
}

// profileResponse はプロフィールのAPIレスポンス。
// 内部IDはクライアントへ露出しない。
type profileResponse struct {
	Email        string     `json:"email"`
	FirstName    *string    `json:"firstName,omitempty"`
	LastName     *string    `json:"lastName,omitempty"`
	AvatarURL    *string    `json:"avatarUrl,omitempty"`
	ProviderType *string    `json:"providerType,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
}

// Me は認証済みユーザー自身のプロフィールを取得する。
// GET /api/me
//
// Webhook未着などでプロフィール行がまだ存在しない場合は404を返す。
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	clerkUserID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.finder.FindByClerkID(r.Context(), clerkUserID)
	if err != nil {
		h.logger.Error("failed to find profile",
			slog.String("clerk_user_id", clerkUserID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if profile == nil {
		middleware.WriteError(w, http.StatusNotFound, "profile not found")
		return
	}

	var providerType *string
	if profile.ProviderType != nil {
		pt := string(*profile.ProviderType)
		providerType = &pt
	}

	middleware.WriteJSON(w, http.StatusOK, profileResponse{
		Email:        profile.Email,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		AvatarURL:    profile.AvatarURL,
		ProviderType: providerType,
		CreatedAt:    profile.CreatedAt,
		LastSignInAt: profile.LastSignInAt,
	})
}
