// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// スキャンを記録しなかった理由
const (
	DropReasonDuplicate = "duplicate"
	DropReasonBot       = "bot"
	DropReasonError     = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordExposureIssued()
	RecordIssuanceRetry()
	RecordIssuanceFailure()
	RecordScan(scanType, deviceClass string)
	RecordScanDropped(reason string)
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	exposuresIssued  prometheus.Counter
	issuanceRetries  prometheus.Counter
	issuanceFailures prometheus.Counter
	scans            *prometheus.CounterVec
	scansDropped     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		exposuresIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meishi_exposures_issued_total",
			Help: "新規に発行された公開IDの合計数",
		}),
		issuanceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meishi_exposure_issuance_retries_total",
			Help: "公開IDの衝突による再生成の合計数",
		}),
		issuanceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meishi_exposure_issuance_failures_total",
			Help: "公開IDの発行失敗の合計数",
		}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meishi_scans_total",
			Help: "記録されたスキャンの合計数",
		}, []string{"scan_type", "device_class"}),
		scansDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meishi_scans_dropped_total",
			Help: "記録されなかったスキャンの合計数",
		}, []string{"reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meishi_http_requests_total",
			Help: "HTTPメソッド・ステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meishi_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.exposuresIssued,
		c.issuanceRetries,
		c.issuanceFailures,
		c.scans,
		c.scansDropped,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordExposureIssued は公開IDの新規発行を記録する。
func (c *Collector) RecordExposureIssued() {
	c.exposuresIssued.Inc()
}

// RecordIssuanceRetry は公開IDの再生成を記録する。
func (c *Collector) RecordIssuanceRetry() {
	c.issuanceRetries.Inc()
}

// RecordIssuanceFailure は公開IDの発行失敗を記録する。
func (c *Collector) RecordIssuanceFailure() {
	c.issuanceFailures.Inc()
}

// RecordScan はスキャンの記録を経路・端末分類別に記録する。
func (c *Collector) RecordScan(scanType, deviceClass string) {
	c.scans.WithLabelValues(scanType, deviceClass).Inc()
}

// RecordScanDropped は記録しなかったスキャンを理由別に記録する。
func (c *Collector) RecordScanDropped(reason string) {
	c.scansDropped.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest はHTTPレスポンスのステータスと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordExposureIssued()                        {}
func (Nop) RecordIssuanceRetry()                         {}
func (Nop) RecordIssuanceFailure()                       {}
func (Nop) RecordScan(string, string)                    {}
func (Nop) RecordScanDropped(string)                     {}
func (Nop) RecordHTTPRequest(string, int, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
