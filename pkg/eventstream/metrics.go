package eventstream

import (
	"github.com/c360/eventscope/metric"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	kindEvent = "event"
	kindFrame = "frame"
)

// streamMetrics holds Prometheus metrics for one stream.
type streamMetrics struct {
	inserts     *prometheus.CounterVec
	resets      *prometheus.CounterVec
	evictions   *prometheus.CounterVec
	drops       *prometheus.CounterVec
	size        *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
}

func newStreamMetrics(registry *metric.MetricsRegistry, name string) (*streamMetrics, error) {
	labels := prometheus.Labels{"stream": name}
	m := &streamMetrics{
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "eventscope",
			Subsystem:   "stream",
			Name:        "inserts_total",
			ConstLabels: labels,
			Help:        "Samples offered to the stream",
		}, []string{"kind"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "eventscope",
			Subsystem:   "stream",
			Name:        "resets_total",
			ConstLabels: labels,
			Help:        "Sub-stream resets caused by timestamp regressions",
		}, []string{"kind"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "eventscope",
			Subsystem:   "stream",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Samples removed by watermark culling",
		}, []string{"kind"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "eventscope",
			Subsystem:   "stream",
			Name:        "drops_total",
			ConstLabels: labels,
			Help:        "Samples discarded on insert",
		}, []string{"reason"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "eventscope",
			Subsystem:   "stream",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Samples currently stored",
		}, []string{"kind"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "eventscope",
			Subsystem:   "stream",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Stored samples as a fraction of capacity (0.0 to 1.0)",
		}, []string{"kind"}),
	}

	if err := registry.RegisterCounterVec(name, "stream_inserts", m.inserts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "stream_resets", m.resets); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "stream_evictions", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "stream_drops", m.drops); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec(name, "stream_size", m.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec(name, "stream_utilization", m.utilization); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *streamMetrics) recordInsert(kind string, size, capacity int) {
	m.inserts.WithLabelValues(kind).Inc()
	m.updateSize(kind, size, capacity)
}

func (m *streamMetrics) recordReset(kind string) {
	m.resets.WithLabelValues(kind).Inc()
}

func (m *streamMetrics) recordEviction(kind string, n int) {
	m.evictions.WithLabelValues(kind).Add(float64(n))
}

func (m *streamMetrics) recordDrop(reason string) {
	m.drops.WithLabelValues(reason).Inc()
}

func (m *streamMetrics) updateSize(kind string, size, capacity int) {
	m.size.WithLabelValues(kind).Set(float64(size))
	m.utilization.WithLabelValues(kind).Set(float64(size) / float64(capacity))
}
