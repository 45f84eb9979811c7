// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証試行の結果ラベル
const (
	AuthResultSuccess  = "success"
	AuthResultRejected = "rejected"
	AuthResultError    = "error"
)

// センサー更新の結果ラベル
const (
	SensorResultOn      = "on"
	SensorResultOff     = "off"
	SensorResultUnknown = "unknown"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアントやセンサーから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(result string)
	RecordReauth()
	RecordFetchFailure(operation string, reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSensorUpdate(uniqueID string, result string)
	// ForgetSensor はアンロードされたセンサーのゲージを削除する。
	ForgetSensor(uniqueID string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts   *prometheus.CounterVec
	reauth         prometheus.Counter
	fetchFail      *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	sensorUpdates  *prometheus.CounterVec
	tasksComplete  *prometheus.GaugeVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skylight_auth_attempts_total",
			Help: "Skylight認証試行の結果別合計数",
		}, []string{"result"}),
		reauth: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skylight_reauth_total",
			Help: "401応答を受けて実行した再認証の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skylight_fetch_fail_total",
			Help: "読み取り操作の失敗の合計数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skylight_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skylight_request_latency_seconds",
			Help:    "Skylight APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sensorUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skylight_sensor_updates_total",
			Help: "センサー更新の結果別合計数",
		}, []string{"result"}),
		tasksComplete: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skylight_tasks_complete",
			Help: "センサーごとのタスク完了状態（1: 完了, 0: 未完了, -1: 不明）",
		}, []string{"sensor"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.reauth,
		c.fetchFail,
		c.httpStatus,
		c.requestLatency,
		c.sensorUpdates,
		c.tasksComplete,
	)

	return c
}

// RecordAuthAttempt は認証試行を結果別に記録する。
func (c *Collector) RecordAuthAttempt(result string) {
	c.authAttempts.WithLabelValues(result).Inc()
}

// RecordReauth は再認証を記録する。
func (c *Collector) RecordReauth() {
	c.reauth.Inc()
}

// RecordFetchFailure は読み取り操作の失敗を記録する。
// reasonはラベルに含めない（カーディナリティ抑制）。
func (c *Collector) RecordFetchFailure(operation string, reason string) {
	c.fetchFail.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSensorUpdate はセンサー更新結果を記録し、センサーごとのゲージを更新する。
func (c *Collector) RecordSensorUpdate(uniqueID string, result string) {
	c.sensorUpdates.WithLabelValues(result).Inc()

	value := -1.0
	switch result {
	case SensorResultOn:
		value = 1
	case SensorResultOff:
		value = 0
	}
	c.tasksComplete.WithLabelValues(uniqueID).Set(value)
}

// ForgetSensor はセンサーごとのゲージを削除する。
func (c *Collector) ForgetSensor(uniqueID string) {
	c.tasksComplete.DeleteLabelValues(uniqueID)
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスが不要なテストやCLIで使用する。
type NopCollector struct{}

func (NopCollector) RecordAuthAttempt(string) {}
func (NopCollector) RecordReauth() {}
func (NopCollector) RecordFetchFailure(string, string) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) RecordSensorUpdate(string, string) {}
func (NopCollector) ForgetSensor(string) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
