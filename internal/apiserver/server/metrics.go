// Package server Prometheus 指标导出与进程生命周期
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 认证指标
	LoginsTotal         *prometheus.CounterVec
	RegistrationsTotal  prometheus.Counter
	TokenRefreshesTotal *prometheus.CounterVec
	AuthFailuresTotal   *prometheus.CounterVec

	// 数据库指标
	StoreConnectAttempts prometheus.Counter
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current in-flight HTTP requests",
			},
		),
		LoginsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		RegistrationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Successful account registrations",
			},
		),
		TokenRefreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Access token refresh attempts by result",
			},
			[]string{"result"},
		),
		AuthFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Authentication failures by reason",
			},
			[]string{"reason"},
		),
		StoreConnectAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_connect_attempts_total",
				Help:      "Datastore connection attempts at startup",
			},
		),
	}
}

// 结果标签常量
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// RecordLogin 记录一次登录尝试
// nil 安全：未接入指标时为空操作
func (m *Metrics) RecordLogin(ok bool) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordRegistration 记录一次成功注册
func (m *Metrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.RegistrationsTotal.Inc()
}

// RecordRefresh 记录一次刷新尝试
func (m *Metrics) RecordRefresh(ok bool) {
	if m == nil {
		return
	}
	m.TokenRefreshesTotal.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordAuthFailure 记录一次认证失败
func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultFailed
}

// statusRecorder 捕获响应状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware HTTP 指标采集中间件
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// path 使用路由模式而非原始 URL，避免标签基数爆炸
		path := r.URL.Path
		if pattern := r.Pattern; pattern != "" {
			path = pattern
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// MetricsHandler 返回 /metrics 端点处理器
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
