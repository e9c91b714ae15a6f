// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラやエラーレポーターから利用する。
type MetricsCollector interface {
	RecordWebhookEvent(eventType string)
	RecordSignatureFailure()
	RecordReportResult(sink string, success bool)
	RecordHTTPStatus(statusCode int)
	RecordWebhookLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookEvents  *prometheus.CounterVec
	signatureFail  prometheus.Counter
	reportResults  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	webhookLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomstudio_webhook_events_total",
			Help: "受信したWebhookイベントのタイプ別合計数",
		}, []string{"event_type"}),
		signatureFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomstudio_webhook_signature_fail_total",
			Help: "Webhook署名検証失敗の合計数",
		}),
		reportResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomstudio_error_reports_total",
			Help: "エラーレポート送信のシンク別・結果別合計数",
		}, []string{"sink", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomstudio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomstudio_webhook_latency_seconds",
			Help:    "Webhook処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.webhookEvents,
		c.signatureFail,
		c.reportResults,
		c.httpStatus,
		c.webhookLatency,
	)

	return c
}

// RecordWebhookEvent は受信したWebhookイベントをタイプ別に記録する。
func (c *Collector) RecordWebhookEvent(eventType string) {
	c.webhookEvents.WithLabelValues(eventType).Inc()
}

// RecordSignatureFailure は署名検証失敗を記録する。
func (c *Collector) RecordSignatureFailure() {
	c.signatureFail.Inc()
}

// RecordReportResult はエラーレポート送信の結果をシンク別に記録する。
func (c *Collector) RecordReportResult(sink string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.reportResults.WithLabelValues(sink, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordWebhookLatency はWebhook処理のレイテンシを記録する。
func (c *Collector) RecordWebhookLatency(duration time.Duration) {
	c.webhookLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
