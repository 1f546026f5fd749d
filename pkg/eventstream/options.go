package eventstream

import (
	"log/slog"

	"github.com/c360/eventscope/metric"
)

// Defaults applied by New.
const (
	DefaultEventCapacity = 2_000_000
	DefaultFrameCapacity = 512
	DefaultHighWatermark = 0.9
	DefaultLowWatermark  = 0.5
)

// Option configures a Stream using the functional options pattern.
type Option func(*streamOptions)

type streamOptions struct {
	eventCapacity    int
	frameCapacity    int
	highWatermark    float64
	lowWatermark     float64
	resetPolicy      ResetPolicy
	reorderTolerance int64
	logger           *slog.Logger

	// metricsReg is optional; a nil registry disables Prometheus export
	metricsReg  *metric.MetricsRegistry
	metricsName string
}

// WithEventCapacity bounds the event sub-stream.
func WithEventCapacity(n int) Option {
	return func(o *streamOptions) {
		o.eventCapacity = n
	}
}

// WithFrameCapacity bounds the frame sub-stream.
func WithFrameCapacity(n int) Option {
	return func(o *streamOptions) {
		o.frameCapacity = n
	}
}

// WithWatermarks sets the cull trigger (high) and target (low) as fractions
// of capacity. 0 < low < high <= 1.
func WithWatermarks(high, low float64) Option {
	return func(o *streamOptions) {
		o.highWatermark = high
		o.lowWatermark = low
	}
}

// WithResetPolicy selects how out-of-order samples are handled.
func WithResetPolicy(p ResetPolicy) Option {
	return func(o *streamOptions) {
		o.resetPolicy = p
	}
}

// WithReorderTolerance sets the largest regression ResetReorder inserts in order.
func WithReorderTolerance(d int64) Option {
	return func(o *streamOptions) {
		o.reorderTolerance = d
	}
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *streamOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports stream statistics to Prometheus under the given name.
// A nil registry or empty name leaves metrics disabled.
func WithMetrics(registry *metric.MetricsRegistry, name string) Option {
	return func(o *streamOptions) {
		if registry != nil && name != "" {
			o.metricsReg = registry
			o.metricsName = name
		}
	}
}

func applyOptions(options ...Option) *streamOptions {
	opts := &streamOptions{
		eventCapacity: DefaultEventCapacity,
		frameCapacity: DefaultFrameCapacity,
		highWatermark: DefaultHighWatermark,
		lowWatermark:  DefaultLowWatermark,
		resetPolicy:   ResetClear,
		logger:        slog.Default(),
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
