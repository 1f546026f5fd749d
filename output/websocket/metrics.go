package websocket

import (
	"github.com/c360/eventscope/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the WebSocket output.
type Metrics struct {
	clientsConnected   prometheus.Gauge
	connectionTotal    prometheus.Counter
	disconnectionTotal *prometheus.CounterVec
	messagesSent       *prometheus.CounterVec
	bytesSent          prometheus.Counter
	controlMessages    *prometheus.CounterVec
	broadcastDuration  prometheus.Histogram
	errorsTotal        *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventscope",
			Subsystem: "websocket",
			Name:      "clients_connected",
			Help:      "Number of currently connected clients",
		}),
		connectionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "websocket",
			Name:      "client_connections_total",
			Help:      "Total client connections (including disconnected)",
		}),
		disconnectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "websocket",
			Name:      "client_disconnections_total",
			Help:      "Total client disconnections",
		}, []string{"disconnect_reason"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Envelopes written to clients",
		}, []string{"type"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "websocket",
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent to WebSocket clients",
		}),
		controlMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "websocket",
			Name:      "control_messages_total",
			Help:      "Inbound messages handled, by type and result",
		}, []string{"type", "result"}),
		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventscope",
			Subsystem: "websocket",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to broadcast one envelope to all clients",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "websocket",
			Name:      "errors_total",
			Help:      "WebSocket server errors",
		}, []string{"error_type"}),
	}

	if err := registry.RegisterGauge("websocket", "clients_connected", m.clientsConnected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("websocket", "client_connections", m.connectionTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("websocket", "client_disconnections", m.disconnectionTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("websocket", "messages_sent", m.messagesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("websocket", "bytes_sent", m.bytesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("websocket", "control_messages", m.controlMessages); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("websocket", "broadcast_duration", m.broadcastDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("websocket", "errors", m.errorsTotal); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordError(errorType string) {
	if m != nil {
		m.errorsTotal.WithLabelValues(errorType).Inc()
	}
}

func (m *Metrics) recordSent(msgType string, bytes int) {
	if m != nil {
		m.messagesSent.WithLabelValues(msgType).Inc()
		m.bytesSent.Add(float64(bytes))
	}
}

func (m *Metrics) recordControl(msgType, result string) {
	if m != nil {
		m.controlMessages.WithLabelValues(msgType, result).Inc()
	}
}
