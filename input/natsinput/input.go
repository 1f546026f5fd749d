package natsinput

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/metric"
	"github.com/c360/eventscope/pkg/eventstream"
	"github.com/c360/eventscope/pkg/worker"
)

// Subscriber is the part of natsclient.Client the input uses.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// batchInserter is implemented by *eventstream.Stream.
type batchInserter interface {
	InsertEvents(events []eventstream.Event)
}

// DefaultQueueSize is the number of undecoded messages held between NATS
// delivery and insertion.
const DefaultQueueSize = 256

// Config holds the input settings.
type Config struct {
	Subject   string `json:"subject" yaml:"subject"`
	QueueSize int    `json:"queue_size,omitempty" yaml:"queue_size,omitempty"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natsinput", "Validate", "subject is required")
	}
	return nil
}

// Metrics holds Prometheus metrics for the input.
type Metrics struct {
	messages     prometheus.Counter
	decodeErrors prometheus.Counter
	events       prometheus.Counter
	frames       prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "nats_input",
			Name:      "messages_total",
			Help:      "Batches received from NATS",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "nats_input",
			Name:      "decode_errors_total",
			Help:      "Batches or frames that could not be decoded",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "nats_input",
			Name:      "events_total",
			Help:      "Events inserted into the stream",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventscope",
			Subsystem: "nats_input",
			Name:      "frames_total",
			Help:      "Frames inserted into the stream",
		}),
	}

	if err := registry.RegisterCounter("nats_input", "messages", m.messages); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats_input", "decode_errors", m.decodeErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats_input", "events", m.events); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats_input", "frames", m.frames); err != nil {
		return nil, err
	}
	return m, nil
}

// Input subscribes to a subject and inserts decoded samples.
type Input struct {
	cfg      Config
	sub      Subscriber
	sink     eventstream.Inserter
	onSource func(string) error
	logger   *slog.Logger
	metrics  *Metrics
	registry *metric.MetricsRegistry
	queue    *worker.Pool[[]byte]

	mu      sync.Mutex
	source  string
	running atomic.Bool

	messages     atomic.Int64
	decodeErrors atomic.Int64
}

// Option configures an Input.
type Option func(*Input)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Input) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithSourceChange registers a callback run when a batch names a new source.
func WithSourceChange(fn func(source string) error) Option {
	return func(i *Input) {
		i.onSource = fn
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(i *Input) {
		i.registry = registry
		m, err := newMetrics(registry)
		if err != nil {
			i.logger.Warn("NATS input metrics disabled", "error", err)
			return
		}
		i.metrics = m
	}
}

// New creates an input. It does not subscribe until Start.
func New(cfg Config, sub Subscriber, sink eventstream.Inserter, opts ...Option) (*Input, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sub == nil || sink == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natsinput", "New", "subscriber and sink are required")
	}

	i := &Input{
		cfg:    cfg,
		sub:    sub,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "natsinput", "subject", cfg.Subject)

	var poolOpts []worker.Option[[]byte]
	if i.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[[]byte](i.registry, "nats_decode"))
	}
	queue, err := worker.NewPool(1, cfg.QueueSize, i.process, poolOpts...)
	if err != nil {
		return nil, err
	}
	i.queue = queue
	return i, nil
}

// Start starts the decode queue and subscribes to the configured subject.
// Messages are decoded on one worker so insertion keeps delivery order.
func (i *Input) Start(ctx context.Context) error {
	if !i.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "natsinput", "Start", "subscribe")
	}
	if err := i.queue.Start(ctx); err != nil && !errors.Is(err, errors.ErrAlreadyStarted) {
		i.running.Store(false)
		return err
	}
	if err := i.sub.Subscribe(ctx, i.cfg.Subject, i.enqueue); err != nil {
		i.running.Store(false)
		return errors.Wrap(err, "natsinput", "Start", "subscribe to "+i.cfg.Subject)
	}
	i.logger.Info("NATS input started")
	return nil
}

// Stop drains the decode queue. Messages delivered afterwards are dropped.
func (i *Input) Stop(timeout time.Duration) error {
	if err := i.queue.Stop(timeout); err != nil {
		return errors.Wrap(err, "natsinput", "Stop", "drain decode queue")
	}
	return nil
}

// QueueStats returns the decode queue counters.
func (i *Input) QueueStats() worker.PoolStats {
	return i.queue.Stats()
}

func (i *Input) enqueue(_ context.Context, data []byte) {
	if err := i.queue.Submit(data); err != nil {
		i.logger.Debug("Dropped NATS message", "error", err)
	}
}

func (i *Input) process(ctx context.Context, data []byte) error {
	i.HandleMessage(ctx, data)
	return nil
}

// Messages returns the number of batches received.
func (i *Input) Messages() int64 {
	return i.messages.Load()
}

// DecodeErrors returns the number of undecodable batches and frames.
func (i *Input) DecodeErrors() int64 {
	return i.decodeErrors.Load()
}

// HandleMessage decodes one batch and inserts its samples synchronously.
func (i *Input) HandleMessage(_ context.Context, data []byte) {
	i.messages.Add(1)
	if i.metrics != nil {
		i.metrics.messages.Inc()
	}

	batch, err := Decode(data)
	if err != nil {
		i.decodeError(err)
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if batch.Source != "" && batch.Source != i.source {
		if i.onSource != nil {
			if err := i.onSource(batch.Source); err != nil {
				i.logger.Error("Source change rejected", "source", batch.Source, "error", err)
				return
			}
		}
		i.source = batch.Source
	}

	if len(batch.Events) > 0 {
		events := make([]eventstream.Event, len(batch.Events))
		for k, w := range batch.Events {
			events[k] = EventFromWire(w)
		}
		if bi, ok := i.sink.(batchInserter); ok {
			bi.InsertEvents(events)
		} else {
			for _, e := range events {
				i.sink.InsertEvent(e)
			}
		}
		if i.metrics != nil {
			i.metrics.events.Add(float64(len(events)))
		}
	}

	for _, w := range batch.Frames {
		f, err := FrameFromWire(w)
		if err != nil {
			i.decodeError(err)
			continue
		}
		i.sink.InsertFrame(f)
		if i.metrics != nil {
			i.metrics.frames.Inc()
		}
	}
}

func (i *Input) decodeError(err error) {
	i.decodeErrors.Add(1)
	if i.metrics != nil {
		i.metrics.decodeErrors.Inc()
	}
	i.logger.Debug("Dropped undecodable data", "error", err)
}
