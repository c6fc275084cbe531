package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet gauges
	NodeActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_node_active",
			Help: "Whether a node is active (1) or killed (0), by node id",
		},
		[]string{"node_id"},
	)

	NodeQueueLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_node_queue_length",
			Help: "Current local queue length, by node id",
		},
		[]string{"node_id"},
	)

	// Task counters and histograms
	TasksSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_tasks_submitted_total",
			Help: "Total number of tasks submitted to the ingest queue",
		},
	)

	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_tasks_completed_total",
			Help: "Total number of tasks completed across the fleet",
		},
	)

	MigrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_migrations_total",
			Help: "Total number of tasks moved by the work-stealing loop",
		},
	)

	PlacementLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsim_placement_latency_seconds",
			Help:    "Time from task submission to placement on a node",
			Buckets: prometheus.DefBuckets,
		},
	)

	TaskLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsim_task_latency_seconds",
			Help:    "End-to-end task latency (creation to completion)",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Control surface gauges/counters
	WSSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsim_ws_subscribers",
			Help: "Current number of connected WebSocket subscribers",
		},
	)

	BroadcastTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_broadcast_ticks_total",
			Help: "Total number of snapshot broadcast ticks",
		},
	)

	RecordRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_record_rows_total",
			Help: "Total number of CSV rows written by the recording sink",
		},
	)
)

func init() {
	prometheus.MustRegister(NodeActive)
	prometheus.MustRegister(NodeQueueLength)
	prometheus.MustRegister(TasksSubmitted)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(MigrationsTotal)
	prometheus.MustRegister(PlacementLatency)
	prometheus.MustRegister(TaskLatency)
	prometheus.MustRegister(WSSubscribers)
	prometheus.MustRegister(BroadcastTicksTotal)
	prometheus.MustRegister(RecordRowsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
