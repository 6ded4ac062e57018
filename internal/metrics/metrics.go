// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はMockAPIゲートウェイ呼び出しのメトリクスを収集する実装。
// mockapi.MetricsRecorder を満たす。
type Collector struct {
	callSuccess *prometheus.CounterVec
	callFail    *prometheus.CounterVec
	httpStatus  *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		callSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barberbook_api_call_success_total",
			Help: "ゲートウェイ呼び出し成功の合計数（操作別）",
		}, []string{"operation"}),
		callFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barberbook_api_call_fail_total",
			Help: "ゲートウェイ呼び出し失敗の合計数（操作・エラーコード別）",
		}, []string{"operation", "error_code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barberbook_api_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "barberbook_api_call_latency_seconds",
			Help:    "ゲートウェイ呼び出しのレイテンシ（秒、操作別）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.callSuccess,
		c.callFail,
		c.httpStatus,
		c.callLatency,
	)

	return c
}

// RecordCallSuccess は呼び出し成功を記録する。
func (c *Collector) RecordCallSuccess(operation string) {
	c.callSuccess.WithLabelValues(operation).Inc()
}

// RecordCallFailure は呼び出し失敗をエラーコード付きで記録する。
func (c *Collector) RecordCallFailure(operation string, errorCode string) {
	c.callFail.WithLabelValues(operation, errorCode).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCallLatency は呼び出しレイテンシを記録する。
func (c *Collector) RecordCallLatency(operation string, duration time.Duration) {
	c.callLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
