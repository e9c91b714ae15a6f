// Package report はエラーレポートの外部送信機能を提供する。
// ハンドラで発生した障害をDiscordのWebhookとNotionのバグ管理データベースへ
// ベストエフォートで転送する。送信失敗は呼び出し元へ伝播しない。
package report

import (
	"context"
	"log/slog"
	"time"
)

// Report は1件のエラーレポート。障害発生箇所で組み立てられ、
// 各シンクへ送信された後は破棄される（永続化もリトライもしない）。
type Report struct {
	// Name はエラーの題名（例外名やエラー種別）。
	Name string
	// Endpoint はエラーが発生したAPIエンドポイント。
	Endpoint string
	// Description はエラーの詳細（スタックトレース等の自由記述）。
	Description string
	// InputBody は障害時のリクエスト入力。JSONであれば整形して記録される。
	InputBody string
}

// Sink はエラーレポートの送信先のインターフェース。
type Sink interface {
	// Name はログ・メトリクス用のシンク識別名を返す。
	Name() string
	// Send はレポートを送信する。失敗時はエラーを返す。
	Send(ctx context.Context, rpt *Report) error
}

// ResultRecorder はシンクごとの送信結果を記録するインターフェース。
// メトリクスコレクターが実装する。nilの場合は記録しない。
type ResultRecorder interface {
	RecordReportResult(sink string, success bool)
}

// Reporter は複数シンクへのエラーレポート送信を行う。
// enabledがfalse（本番環境以外）の場合、Reportは何も送信しない。
type Reporter struct {
	sinks    []Sink
	logger   *slog.Logger
	enabled  bool
	timeout  time.Duration
	recorder ResultRecorder
}

// NewReporter はReporterの新しいインスタンスを生成する。
// enabledは本番環境でのみtrueにする。timeoutは全シンク送信の合計制限時間。
func NewReporter(logger *slog.Logger, enabled bool, timeout time.Duration, sinks ...Sink) *Reporter {
	return &Reporter{
		sinks:   sinks,
		logger:  logger,
		enabled: enabled,
		timeout: timeout,
	}
}

// SetRecorder は送信結果の記録先を設定する。
func (r *Reporter) SetRecorder(rec ResultRecorder) {
	r.recorder = rec
}

// Enabled はレポート送信が有効かを返す。
func (r *Reporter) Enabled() bool {
	return r.enabled
}

// Report はレポートを全シンクへ順番に送信する。
// あるシンクの失敗は他のシンクの送信を妨げず、エラーは呼び出し元へ返さない。
// 失敗はすべてログに記録される。リクエスト処理を遅延させたくない場合、
// 呼び出し元はgoroutineで呼び出してよい（ctxにはcontext.WithoutCancelを渡す）。
func (r *Reporter) Report(ctx context.Context, rpt *Report) {
	if !r.enabled {
		r.logger.Debug("エラーレポート送信は無効のためスキップします",
			slog.String("error_name", rpt.Name),
		)
		return
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	for _, sink := range r.sinks {
		err := sink.Send(ctx, rpt)
		if err != nil {
			r.logger.Error("エラーレポートの送信に失敗しました",
				slog.String("sink", sink.Name()),
				slog.String("error_name", rpt.Name),
				slog.String("error", err.Error()),
			)
		}
		if r.recorder != nil {
			r.recorder.RecordReportResult(sink.Name(), err == nil)
		}
	}
}
