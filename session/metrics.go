package session

import (
	"time"

	"github.com/c360/eventscope/metric"
	"github.com/c360/eventscope/pkg/window"
	"github.com/prometheus/client_golang/prometheus"
)

// sessionMetrics holds Prometheus metrics for the tick loop.
type sessionMetrics struct {
	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	position     *prometheus.GaugeVec
	windowEvents prometheus.Gauge
}

func newSessionMetrics(registry *metric.MetricsRegistry) (*sessionMetrics, error) {
	m := &sessionMetrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "session",
			Name:      "ticks_total",
			Help:      "Window updates performed",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventscope",
			Subsystem: "session",
			Name:      "tick_duration_seconds",
			Help:      "Time to update the window and copy its contents",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "eventscope",
			Subsystem: "session",
			Name:      "window_position",
			Help:      "Window bounds after the last tick, as event index or relative time",
		}, []string{"domain", "bound"}),
		windowEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventscope",
			Subsystem: "session",
			Name:      "window_events",
			Help:      "Events inside the window after the last tick",
		}),
	}

	if err := registry.RegisterCounter("session", "ticks", m.ticks); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("session", "tick_duration", m.tickDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("session", "window_position", m.position); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("session", "window_events", m.windowEvents); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *sessionMetrics) observe(w window.Window, took time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(took.Seconds())
	m.position.WithLabelValues("index", "lower").Set(float64(w.LowerIndex))
	m.position.WithLabelValues("index", "current").Set(float64(w.CurrentIndex))
	m.position.WithLabelValues("time", "lower").Set(w.LowerTime)
	m.position.WithLabelValues("time", "current").Set(w.CurrentTime)
	if w.Empty() {
		m.windowEvents.Set(0)
	} else {
		m.windowEvents.Set(float64(w.CurrentIndex - w.LowerIndex + 1))
	}
}
