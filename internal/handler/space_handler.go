package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/roomstudio/internal/middleware"
	"github.com/hitoshi/roomstudio/internal/model"
	"github.com/hitoshi/roomstudio/internal/report"
	"github.com/hitoshi/roomstudio/internal/space"
)

// SpaceServiceInterface はスペースハンドラーが必要とするサービスインターフェース。
type SpaceServiceInterface interface {
	// List はユーザーのスペースを新しい順に最大10件返す。
	List(ctx context.Context, clerkUserID string) ([]space.View, error)
	// Create はスタジオフォームの送信内容からスペースを作成する。
	Create(ctx context.Context, clerkUserID string, sub *space.Submission) (*model.Space, error)
}

// SpaceHandler はスペース閲覧・作成のHTTPハンドラー。
type SpaceHandler struct {
	service  SpaceServiceInterface
	reporter *report.Reporter
	logger   *slog.Logger
}

// NewSpaceHandler はSpaceHandlerを生成する。reporterはnilでもよい。
func NewSpaceHandler(service SpaceServiceInterface, reporter *report.Reporter, logger *slog.Logger) *SpaceHandler {
	return &SpaceHandler{
		service:  service,
		reporter: reporter,
		logger:   logger,
	}
}

// spacesResponse はスペース一覧のAPIレスポンス。
type spacesResponse struct {
	Spaces []space.View `json:"spaces"`
}

// ListSpaces はユーザーのスペース一覧を取得する。
// GET /api/spaces
//
// 所有者はセッション由来のユーザーIDのみで特定する（クエリパラメータは信用しない）。
// ストア障害は500を返し、詳細はエラーレポーターへ転送する。
func (h *SpaceHandler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	clerkUserID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	views, err := h.service.List(r.Context(), clerkUserID)
	if err != nil {
		h.logger.Error("failed to list spaces",
			slog.String("clerk_user_id", clerkUserID),
			slog.String("error", err.Error()),
		)
		h.reportFailure(r, "SpacesFetchError", err, "")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to fetch spaces")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, spacesResponse{Spaces: views})
}

// CreateSpace はスタジオフォームの送信からスペースを作成する。
// POST /api/spaces
func (h *SpaceHandler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	clerkUserID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var sub space.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.Create(r.Context(), clerkUserID, &sub)
	if err != nil {
		var valErr *model.ValidationError
		if errors.As(err, &valErr) {
			middleware.WriteError(w, http.StatusBadRequest, valErr.Error())
			return
		}

		h.logger.Error("failed to create space",
			slog.String("clerk_user_id", clerkUserID),
			slog.String("error", err.Error()),
		)
		body, _ := json.Marshal(&sub)
		h.reportFailure(r, "SpaceCreateError", err, string(body))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to create space")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, space.View{Name: created.Name, URL: created.URL})
}

// reportFailure はストア障害をエラーレポーターへ非同期で転送する。
func (h *SpaceHandler) reportFailure(r *http.Request, name string, err error, inputBody string) {
	if h.reporter == nil {
		return
	}

	rpt := &report.Report{
		Name:        name,
		Endpoint:    r.URL.Path,
		Description: err.Error(),
		InputBody:   inputBody,
	}
	go h.reporter.Report(context.WithoutCancel(r.Context()), rpt)
}
