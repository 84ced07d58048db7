package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RepositoryOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "altmur_repository_operations_total",
		Help: "Repository operations by entity, operation and outcome",
	}, []string{"entity", "op", "outcome"})
	RepositoryOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "altmur_repository_operation_duration_seconds",
		Help:    "Repository operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity", "op"})
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "altmur_cache_lookups_total",
		Help: "Entity cache lookups by entity and result",
	}, []string{"entity", "result"})
	ChangeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "altmur_change_events_total",
		Help: "Change events published by entity and result",
	}, []string{"entity", "result"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		RepositoryOpsTotal, RepositoryOpDuration,
		CacheLookupsTotal, ChangeEventsTotal,
		HttpRequestsTotal, HttpRequestDuration,
	)
}

// ObserveRepositoryOp 记录一次仓储操作。outcome 为 ok 或错误类别。
func ObserveRepositoryOp(entity, op, outcome string, elapsed time.Duration) {
	RepositoryOpsTotal.WithLabelValues(entity, op, outcome).Inc()
	RepositoryOpDuration.WithLabelValues(entity, op).Observe(elapsed.Seconds())
}

func ObserveCacheLookup(entity string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(entity, result).Inc()
}

func ObserveChangeEvent(entity string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ChangeEventsTotal.WithLabelValues(entity, result).Inc()
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
