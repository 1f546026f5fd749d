package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Component status values reported by RecordComponentStatus.
const (
	StatusStopped  = 0
	StatusStarting = 1
	StatusRunning  = 2
	StatusStopping = 3
	StatusFailed   = 4
)

// Metrics contains process-level metrics shared by every component
type Metrics struct {
	ComponentStatus *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	SourceSwitches  prometheus.Counter
}

// NewMetrics creates the process-level metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "eventscope",
				Subsystem: "component",
				Name:      "status",
				Help:      "Component status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"component"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventscope",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),
		SourceSwitches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "eventscope",
				Subsystem: "session",
				Name:      "source_switches_total",
				Help:      "Number of times a new source was selected",
			},
		),
	}
}

// RecordComponentStatus updates the status gauge for a component
func (m *Metrics) RecordComponentStatus(component string, status int) {
	m.ComponentStatus.WithLabelValues(component).Set(float64(status))
}

// RecordError increments the error counter
func (m *Metrics) RecordError(component, class string) {
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordSourceSwitch increments the source switch counter
func (m *Metrics) RecordSourceSwitch() {
	m.SourceSwitches.Inc()
}
