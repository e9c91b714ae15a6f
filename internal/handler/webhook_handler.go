// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/roomstudio/internal/clerk"
	"github.com/hitoshi/roomstudio/internal/metrics"
	"github.com/hitoshi/roomstudio/internal/middleware"
	"github.com/hitoshi/roomstudio/internal/model"
	"github.com/hitoshi/roomstudio/internal/report"
)

// maxWebhookBodySize はWebhookリクエストボディの最大サイズ。
const maxWebhookBodySize = 1 << 20 // 1MB

// SignatureVerifier はWebhook署名検証のインターフェース。
// clerk.Verifierの部分集合として定義する。
type SignatureVerifier interface {
	Verify(payload []byte, msgID, timestamp, signatures string) error
}

// EventApplier はWebhookイベントをユーザーストアに反映するインターフェース。
// profile.SyncServiceが実装する。
type EventApplier interface {
	Apply(ctx context.Context, evt *clerk.Event) error
}

// WebhookHandler はIDプロバイダーからのWebhookを受信するHTTPハンドラー。
// 署名検証 → イベントパース → ストア反映の順に処理する。
type WebhookHandler struct {
	verifier SignatureVerifier
	applier  EventApplier
	reporter *report.Reporter
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewWebhookHandler はWebhookHandlerを生成する。
// reporterとmetricsはnilでもよい（その場合は記録しない）。
func NewWebhookHandler(
	verifier SignatureVerifier,
	applier EventApplier,
	reporter *report.Reporter,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		applier:  applier,
		reporter: reporter,
		metrics:  collector,
		logger:   logger,
	}
}

// Handle はWebhookリクエストを処理する。
// POST /api/webhooks/clerk
//
// 署名ヘッダーの欠落・検証失敗は400、ストア反映失敗は500、
// 処理対象外のイベント種別は何もせず200を返す。
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	msgID := r.Header.Get(clerk.HeaderID)
	timestamp := r.Header.Get(clerk.HeaderTimestamp)
	signatures := r.Header.Get(clerk.HeaderSignature)
	if msgID == "" || timestamp == "" || signatures == "" {
		middleware.WriteError(w, http.StatusBadRequest, "missing signature headers")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := h.verifier.Verify(body, msgID, timestamp, signatures); err != nil {
		h.logger.Warn("webhook signature verification failed",
			slog.String("svix_id", msgID),
			slog.String("error", err.Error()),
		)
		if h.metrics != nil {
			h.metrics.RecordSignatureFailure()
		}
		middleware.WriteError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	evt, err := clerk.ParseEvent(body)
	if err != nil {
		h.logger.Warn("failed to parse webhook event",
			slog.String("svix_id", msgID),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordWebhookEvent(string(evt.Type))
	}

	if err := h.applier.Apply(r.Context(), evt); err != nil {
		h.logger.Error("failed to apply webhook event",
			slog.String("svix_id", msgID),
			slog.String("event_type", string(evt.Type)),
			slog.String("error", err.Error()),
		)
		h.reportFailure(r, "WebhookStoreError", err, body)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to process webhook")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordWebhookLatency(time.Since(start))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Webhook processed successfully",
	})
}

// reportFailure はストア障害をエラーレポーターへ非同期で転送する。
// レポート送信はリクエスト処理をブロックせず、失敗しても伝播しない。
func (h *WebhookHandler) reportFailure(r *http.Request, name string, err error, body []byte) {
	if h.reporter == nil {
		return
	}

	description := err.Error()
	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		description = storeErr.Error()
	}

	rpt := &report.Report{
		Name:        name,
		Endpoint:    r.URL.Path,
		Description: description,
		InputBody:   string(body),
	}
	go h.reporter.Report(context.WithoutCancel(r.Context()), rpt)
}
