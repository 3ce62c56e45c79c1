package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 审批请求创建数
	requestsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "approval_requests_created_total",
			Help: "Total number of approval requests created",
		},
	)

	// 审批决定数
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Total number of approval decisions",
		},
		[]string{"action"}, // approve, reject, advance, escalate
	)

	// 通知投递失败数
	dispatchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_failures_total",
			Help: "Total number of failed notification dispatch attempts",
		},
		[]string{"channel"}, // email, store, queue
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// 请求状态分布
	requestsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "approval_requests_by_state",
			Help: "Number of approval requests by state",
		},
		[]string{"state"},
	)
)

var once sync.Once

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(requestsCreatedTotal)
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(dispatchFailuresTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(requestsByState)

	// 注册 Go 运行时指标(只注册一次)
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordRequestCreated 记录审批请求创建
func RecordRequestCreated() {
	requestsCreatedTotal.Inc()
}

// RecordDecision 记录审批决定
func RecordDecision(action string) {
	decisionsTotal.WithLabelValues(action).Inc()
}

// RecordDispatchFailure 记录通知投递失败
func RecordDispatchFailure(channel string) {
	dispatchFailuresTotal.WithLabelValues(channel).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))

	return nil
}

// UpdateRequestsByState 更新请求状态分布指标
func UpdateRequestsByState(state string, count float64) {
	requestsByState.WithLabelValues(state).Set(count)
}
