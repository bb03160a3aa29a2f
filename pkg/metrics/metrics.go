package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	// VideoTransitions 视频状态迁移次数
	VideoTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sermon_publisher",
		Name:      "video_transitions_total",
		Help:      "Video record status transitions by target status.",
	}, []string{"status"})

	// VideoFailures 按错误类别统计的失败次数
	VideoFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sermon_publisher",
		Name:      "video_failures_total",
		Help:      "Video pipeline failures by error category.",
	}, []string{"category"})

	GenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sermon_publisher",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of a generation run.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
	})

	UploadAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sermon_publisher",
		Name:      "upload_attempts_total",
		Help:      "Publishing upload attempts by outcome.",
	}, []string{"outcome"})

	BatchItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sermon_publisher",
		Name:      "batch_items_total",
		Help:      "Reported batch item outcomes.",
	}, []string{"outcome"})

	BulkItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sermon_publisher",
		Name:      "bulk_items_total",
		Help:      "Bulk operation items by operation and result.",
	}, []string{"operation", "result"})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sermon_publisher",
		Name:      "job_queue_depth",
		Help:      "Jobs waiting in the local worker queue.",
	})
)

func init() {
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		VideoTransitions,
		VideoFailures,
		GenerationDuration,
		UploadAttempts,
		BatchItems,
		BulkItems,
		QueueDepth,
	)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
