package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/metric"
	"github.com/c360/eventscope/pkg/eventstream"
	"github.com/c360/eventscope/pkg/paramstore"
	"github.com/c360/eventscope/pkg/window"
	"github.com/google/uuid"
)

// DefaultMaxEvents bounds the events copied into one Snapshot.
const DefaultMaxEvents = 50_000

// Sink receives every Snapshot Run produces.
type Sink interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, snap Snapshot) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// Session binds a stream, a parameter store and a window controller.
type Session struct {
	stream     *eventstream.Stream
	store      *paramstore.Store
	controller *window.Controller

	mu     sync.RWMutex
	id     string
	source string

	sequence  atomic.Uint64
	maxEvents int
	logger    *slog.Logger

	registry *metric.MetricsRegistry
	metrics  *sessionMetrics
}

// Option configures a Session.
type Option func(*Session)

// WithMaxEvents limits the events copied per Snapshot; 0 disables the limit.
func WithMaxEvents(n int) Option {
	return func(s *Session) {
		s.maxEvents = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records source switches, errors and tick latency.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Session) {
		s.registry = registry
	}
}

// WithSource names the initial source.
func WithSource(name string) Option {
	return func(s *Session) {
		s.source = name
	}
}

// New creates a session and seeds the controller's playback keys.
func New(stream *eventstream.Stream, store *paramstore.Store, controller *window.Controller, opts ...Option) (*Session, error) {
	if stream == nil || store == nil || controller == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Session", "New",
			"stream, store and controller are required")
	}

	s := &Session{
		stream:     stream,
		store:      store,
		controller: controller,
		id:         uuid.NewString(),
		maxEvents:  DefaultMaxEvents,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")

	if s.registry != nil {
		m, err := newSessionMetrics(s.registry)
		if err != nil {
			return nil, errors.Wrap(err, "Session", "New", "metrics registration")
		}
		s.metrics = m
	}

	controller.Seed()
	return s, nil
}

// ID returns the current session id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Source returns the active source name.
func (s *Session) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Stream returns the session's event stream.
func (s *Session) Stream() *eventstream.Stream {
	return s.stream
}

// Store returns the session's parameter store.
func (s *Session) Store() *paramstore.Store {
	return s.store
}

// SelectSource switches to a new source: the stream is cleared and a new
// session id is issued. Selecting the active source again is a no-op.
func (s *Session) SelectSource(name string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Session", "SelectSource", "empty source name")
	}

	s.mu.Lock()
	if name == s.source {
		s.mu.Unlock()
		return nil
	}
	previous := s.source
	s.source = name
	s.id = uuid.NewString()
	id := s.id
	s.mu.Unlock()

	s.stream.Clear()
	if s.registry != nil {
		s.registry.CoreMetrics().RecordSourceSwitch()
	}
	s.logger.Info("Source selected", "source", name, "previous", previous, "session_id", id)
	return nil
}

// Tick updates the window and captures its contents under one stream lock.
// It fails only when the controller runs in strict mode and the playback
// state is unusable.
func (s *Session) Tick() (Snapshot, error) {
	start := time.Now()

	s.mu.RLock()
	snap := Snapshot{SessionID: s.id, Source: s.source}
	s.mu.RUnlock()

	w, err := s.sample(&snap)
	if err != nil {
		return Snapshot{}, err
	}

	snap.Sequence = s.sequence.Add(1)
	snap.Stats = s.stream.Stats().Summary()

	s.metrics.observe(w, time.Since(start))
	return snap, nil
}

// sample runs the controller and copies the window out under one view.
func (s *Session) sample(snap *Snapshot) (window.Window, error) {
	v := s.stream.Acquire()
	defer v.Release()

	w, err := s.controller.Update(v)
	if err != nil {
		return w, err
	}
	snap.Window = w

	if !w.Empty() {
		anchor, _ := v.EarliestEventTimestamp()
		inWindow := v.SliceEvents(w.LowerIndex, w.CurrentIndex)
		snap.EventsTotal = len(inWindow)
		snap.Events = copyWindowEvents(inWindow, anchor, s.maxEvents)

		if i := v.FrameIndexAtOrBefore(w.CurrentTime); i != eventstream.NotFound {
			f := v.SliceFrames(i, i)[0]
			if float64(f.Timestamp) >= w.LowerTime {
				info := &FrameInfo{Index: i, Timestamp: float64(f.Timestamp)}
				if f.Image != nil {
					b := f.Image.Bounds()
					info.Width, info.Height = b.Dx(), b.Dy()
				}
				snap.Frame = info
			}
		}
	} else {
		snap.Events = []eventstream.Event{}
	}
	snap.FrameCount = v.FrameCount()
	return w, nil
}

// Run ticks every interval until ctx is done, publishing each Snapshot to
// every sink. Sink errors are logged and counted; a Tick error ends Run.
func (s *Session) Run(ctx context.Context, interval time.Duration, sinks ...Sink) error {
	if interval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Session", "Run", "tick interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Session running", "interval", interval, "sinks", len(sinks), "session_id", s.ID())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, err := s.Tick()
			if err != nil {
				s.recordError(err)
				s.logger.Error("Window update failed", "error", err)
				return err
			}
			for _, sink := range sinks {
				if err := sink.Publish(ctx, snap); err != nil {
					s.recordError(err)
					s.logger.Warn("Snapshot publish failed", "error", err, "sequence", snap.Sequence)
				}
			}
		}
	}
}

func (s *Session) recordError(err error) {
	if s.registry != nil {
		s.registry.CoreMetrics().RecordError("session", errors.Classify(err).String())
	}
}
