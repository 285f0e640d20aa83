// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// auction.MetricsRecorderとsession.MetricsRecorderを満たす。
type Collector struct {
	bidAccepted     prometheus.Counter
	bidRejected     prometheus.Counter
	bidConflict     prometheus.Counter
	sessionExpired  prometheus.Counter
	sessionsCleaned prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bidAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidman_bid_accepted_total",
			Help: "受理された入札の合計数",
		}),
		bidRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidman_bid_rejected_total",
			Help: "拒否された入札の合計数",
		}),
		bidConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidman_bid_conflict_total",
			Help: "並行入札と競合して再試行した回数",
		}),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidman_session_expired_total",
			Help: "遅延失効で削除されたセッションの合計数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidman_sessions_cleaned_total",
			Help: "一括クリーンアップで削除されたセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bidman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.bidAccepted,
		c.bidRejected,
		c.bidConflict,
		c.sessionExpired,
		c.sessionsCleaned,
		c.httpStatus,
	)

	return c
}

// RecordBidAccepted は受理された入札を記録する。
func (c *Collector) RecordBidAccepted() {
	c.bidAccepted.Inc()
}

// RecordBidRejected は拒否された入札を記録する。
func (c *Collector) RecordBidRejected() {
	c.bidRejected.Inc()
}

// RecordBidConflict は入札の競合再試行を記録する。
func (c *Collector) RecordBidConflict() {
	c.bidConflict.Inc()
}

// RecordSessionExpired は遅延失効によるセッション削除を記録する。
func (c *Collector) RecordSessionExpired() {
	c.sessionExpired.Inc()
}

// RecordSessionsCleaned は一括クリーンアップで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
