package queue

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the download queue's depth and outcome counters as
// Prometheus collectors. SPEC_FULL.md §4.7 notes no HTTP /metrics server is
// in scope for this module; these are registered on a dedicated registry so
// a future CLI surface (or a test) can read them without colliding with any
// other package's default-registry metrics.
type Metrics struct {
	Registry    *prometheus.Registry
	QueueDepth  *prometheus.GaugeVec
	Completed   prometheus.Counter
	FailedTotal prometheus.Counter
}

// NewMetrics constructs a Metrics set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "youtun4",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current number of queue items by status.",
		}, []string{"status"}),
		Completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "youtun4",
			Subsystem: "queue",
			Name:      "completed_total",
			Help:      "Total number of download jobs that completed successfully.",
		}),
		FailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "youtun4",
			Subsystem: "queue",
			Name:      "failed_total",
			Help:      "Total number of download jobs that reached a terminal Failed state.",
		}),
	}

	reg.MustRegister(m.QueueDepth, m.Completed, m.FailedTotal)

	return m
}

// observe updates the depth gauges from a fresh QueueStats snapshot.
func (m *Metrics) observe(st QueueStats) {
	if m == nil {
		return
	}

	m.QueueDepth.WithLabelValues(string(StatusPending)).Set(float64(st.Pending))
	m.QueueDepth.WithLabelValues(string(StatusDownloading)).Set(float64(st.Downloading))
	m.QueueDepth.WithLabelValues(string(StatusCompleted)).Set(float64(st.Completed))
	m.QueueDepth.WithLabelValues(string(StatusFailed)).Set(float64(st.Failed))
	m.QueueDepth.WithLabelValues(string(StatusCancelled)).Set(float64(st.Cancelled))
}
