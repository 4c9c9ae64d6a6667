// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
//
// 同时实现 voice.Recorder、store.LookupObserver 与 store.CacheObserver。
type Collector struct {
	factory   promauto.Factory
	namespace string

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 对话指标
	stateTransitions *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	stageTotal       *prometheus.CounterVec
	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec

	// 应答库、上报与答案缓存
	storeLookups *prometheus.CounterVec
	reportsTotal *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec

	// 数据库连接池
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// 请求体以事件 JSON 为主，响应体包含整段应答文本
var sizeBuckets = []float64{64, 256, 1024, 4096, 16384, 65536}

// NewCollector 在 reg 上注册全部指标；reg 为 nil 时使用默认注册表
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		factory:   promauto.With(reg),
		namespace: namespace,
		logger:    logger.With(zap.String("component", "metrics")),
	}

	route := []string{"method", "path"}
	c.httpRequestsTotal = c.counter("http_requests_total", "Kiosk API requests by route and status class", "method", "path", "status")
	c.httpRequestDuration = c.histogram("http_request_duration_seconds", "Kiosk API latency", prometheus.DefBuckets, route...)
	c.httpRequestSize = c.histogram("http_request_size_bytes", "Kiosk API request body size", sizeBuckets, route...)
	c.httpResponseSize = c.histogram("http_response_size_bytes", "Kiosk API response body size", sizeBuckets, route...)

	c.stateTransitions = c.counter("state_transitions_total", "Conversation state transitions", "from_state", "to_state")
	c.stageDuration = c.histogram("stage_duration_seconds", "Duration of each turn stage (stt, llm, resolve, tts)",
		[]float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}, "stage")
	c.stageTotal = c.counter("stage_total", "Turn stages by result", "stage", "status")
	c.turnsTotal = c.counter("turns_total", "Conversation turns by outcome", "outcome")
	c.turnDuration = c.histogram("turn_duration_seconds", "Conversation turn duration from mic press to end",
		[]float64{0.5, 1, 2, 5, 10, 20, 30, 60}, "outcome")

	c.storeLookups = c.counter("store_lookups_total", "Response store lookups by kind and result", "kind", "result")
	c.reportsTotal = c.counter("reports_total", "Telemetry reports delivered to the collector service", "kind", "status")
	c.cacheHits = c.counter("answer_cache_hits_total", "Redis answer cache hits", "kind")
	c.cacheMisses = c.counter("answer_cache_misses_total", "Redis answer cache misses", "kind")

	c.dbConnectionsOpen = c.gauge("db_connections_open", "Open response store connections", "driver")
	c.dbConnectionsIdle = c.gauge("db_connections_idle", "Idle response store connections", "driver")

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

func (c *Collector) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return c.factory.NewCounterVec(prometheus.CounterOpts{Namespace: c.namespace, Name: name, Help: help}, labels)
}

func (c *Collector) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return c.factory.NewHistogramVec(prometheus.HistogramOpts{Namespace: c.namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

func (c *Collector) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return c.factory.NewGaugeVec(prometheus.GaugeOpts{Namespace: c.namespace, Name: name, Help: help}, labels)
}

// ObserveCircuit 导出引擎熔断器状态：0 关闭，1 半开，2 打开
func (c *Collector) ObserveCircuit(engine string, state func() string) {
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.namespace,
		Name:        "engine_circuit_state",
		Help:        "Engine circuit breaker state (0 closed, 1 half-open, 2 open)",
		ConstLabels: prometheus.Labels{"engine": engine},
	}, func() float64 {
		switch state() {
		case "open":
			return 2
		case "half_open":
			return 1
		default:
			return 0
		}
	})
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🗣️ 对话指标记录
// =============================================================================

// RecordStateTransition 记录状态迁移
func (c *Collector) RecordStateTransition(from, to string) {
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

// RecordStage 记录一个轮次阶段的耗时与结果
func (c *Collector) RecordStage(stage string, d time.Duration, ok bool) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	c.stageTotal.WithLabelValues(stage, result(ok, "success", "failure")).Inc()
}

// RecordTurn 记录轮次结局
func (c *Collector) RecordTurn(outcome string, d time.Duration) {
	c.turnsTotal.WithLabelValues(outcome).Inc()
	c.turnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// =============================================================================
// 🗂️ 应答库、缓存与上报
// =============================================================================

func (c *Collector) RecordStoreLookup(kind string, found bool) {
	c.storeLookups.WithLabelValues(kind, result(found, "hit", "miss")).Inc()
}

func (c *Collector) RecordCacheHit(kind string)  { c.cacheHits.WithLabelValues(kind).Inc() }
func (c *Collector) RecordCacheMiss(kind string) { c.cacheMisses.WithLabelValues(kind).Inc() }

// RecordReport 记录一次遥测上报
func (c *Collector) RecordReport(kind string, ok bool) {
	c.reportsTotal.WithLabelValues(kind, result(ok, "success", "failure")).Inc()
}

// RecordDBConnections 由连接池巡检定期调用
func (c *Collector) RecordDBConnections(driver string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(driver).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(driver).Set(float64(idle))
}

// statusClass 把状态码折叠为 2xx/3xx/4xx/5xx，控制标签基数
func statusClass(code int) string {
	if code < 200 || code > 599 {
		return "unknown"
	}
	return string(rune('0'+code/100)) + "xx"
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
