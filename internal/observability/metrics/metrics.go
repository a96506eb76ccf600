package metrics

import "github.com/prometheus/client_golang/prometheus"

// QueueMetrics exposes counters/histograms for queue engine operations.
type QueueMetrics struct {
	opsTotal     *prometheus.CounterVec
	opLatency    *prometheus.HistogramVec
	repairsTotal prometheus.Counter
}

func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicore",
			Subsystem: "queue",
			Name:      "operations_total",
			Help:      "Total queue engine operations",
		}, []string{"op", "outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicore",
			Subsystem: "queue",
			Name:      "operation_latency_seconds",
			Help:      "Latency of scope-locked queue mutations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		repairsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicore",
			Subsystem: "queue",
			Name:      "repairs_total",
			Help:      "Scopes renumbered by the repair path",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.opsTotal, m.opLatency, m.repairsTotal)
	return m
}

func (m *QueueMetrics) ObserveOp(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op, outcome).Inc()
	m.opLatency.WithLabelValues(op).Observe(seconds)
}

func (m *QueueMetrics) ObserveRepair() {
	if m == nil {
		return
	}
	m.repairsTotal.Inc()
}
