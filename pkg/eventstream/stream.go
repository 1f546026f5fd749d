package eventstream

import (
	"log/slog"
	"sync"

	"github.com/c360/eventscope/errors"
)

// Stream is a bounded, timestamp-ordered store of events and frames.
// It is safe for concurrent use; see the package documentation for the
// reader locking protocol.
type Stream struct {
	mu     sync.Mutex
	events *series[Event]
	frames *series[Frame]

	opts    *streamOptions
	stats   *Statistics
	metrics *streamMetrics
	logger  *slog.Logger
}

var _ Inserter = (*Stream)(nil)

// New creates an empty stream.
func New(options ...Option) (*Stream, error) {
	opts := applyOptions(options...)

	if opts.eventCapacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "EventStream", "New",
			"event capacity must be positive")
	}
	if opts.frameCapacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "EventStream", "New",
			"frame capacity must be positive")
	}
	if !(opts.lowWatermark > 0 && opts.lowWatermark < opts.highWatermark && opts.highWatermark <= 1) {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "EventStream", "New",
			"watermarks must satisfy 0 < low < high <= 1")
	}
	if opts.reorderTolerance < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "EventStream", "New",
			"reorder tolerance must not be negative")
	}

	s := &Stream{
		events: newSeries(opts.eventCapacity, opts.highWatermark, opts.lowWatermark,
			func(e *Event) int64 { return e.Timestamp }),
		frames: newSeries(opts.frameCapacity, opts.highWatermark, opts.lowWatermark,
			func(f *Frame) int64 { return f.Timestamp }),
		opts:   opts,
		stats:  NewStatistics(),
		logger: opts.logger.With("component", "eventstream"),
	}
	// frames are reordered against each other only; the anchor is not involved
	s.frames.headReorder = true

	if opts.metricsReg != nil {
		m, err := newStreamMetrics(opts.metricsReg, opts.metricsName)
		if err != nil {
			return nil, errors.Wrap(err, "EventStream", "New", "metrics registration")
		}
		s.metrics = m
	}

	return s, nil
}

// MustNew is New for fixed, known-good options.
func MustNew(options ...Option) *Stream {
	s, err := New(options...)
	if err != nil {
		panic(err)
	}
	return s
}

// Stats returns the stream's statistics tracker.
func (s *Stream) Stats() *Statistics {
	return s.stats
}

// EventCapacity returns the configured event capacity.
func (s *Stream) EventCapacity() int {
	return s.opts.eventCapacity
}

// FrameCapacity returns the configured frame capacity.
func (s *Stream) FrameCapacity() int {
	return s.opts.frameCapacity
}

// InsertEvent adds one event. A timestamp below the newest stored event is
// handled by the reset policy; under ResetClear it empties both sub-streams.
func (s *Stream) InsertEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertEventLocked(e)
}

// InsertEvents adds a batch of events under one lock acquisition.
func (s *Stream) InsertEvents(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range events {
		s.insertEventLocked(events[i])
	}
}

func (s *Stream) insertEventLocked(e Event) {
	s.stats.eventInserted()
	prevLast, _ := s.events.last()

	switch s.events.insert(e, s.opts.resetPolicy, s.opts.reorderTolerance) {
	case wasReset:
		framesDropped := s.frames.len()
		s.frames.clear()
		s.stats.eventReset()
		if s.metrics != nil {
			s.metrics.recordReset(kindEvent)
			s.metrics.updateSize(kindFrame, 0, s.opts.frameCapacity)
		}
		s.logger.Warn("Event timestamp regressed, stream reset",
			"timestamp", e.Timestamp,
			"previous", prevLast,
			"frames_dropped", framesDropped)
	case dropped:
		s.stats.outOfOrderDrop()
		if s.metrics != nil {
			s.metrics.recordDrop("out_of_order")
		}
		return
	case reordered:
		s.stats.reorder()
	}

	s.cullEventsLocked()

	if s.metrics != nil {
		s.metrics.recordInsert(kindEvent, s.events.len(), s.opts.eventCapacity)
	}
}

// cullEventsLocked trims the event sub-stream and moves frames onto the new anchor.
func (s *Stream) cullEventsLocked() {
	oldAnchor, _ := s.events.first()
	evicted := s.events.cull()
	if evicted == 0 {
		return
	}

	var framesEvicted int
	if newAnchor, ok := s.events.first(); ok {
		framesEvicted = s.rebaseFramesLocked(newAnchor - oldAnchor)
	} else {
		// a cull to an empty event sub-stream leaves frames without an anchor
		framesEvicted = s.frames.len()
		s.frames.clear()
	}
	s.stats.culled(evicted, framesEvicted)
	if s.metrics != nil {
		s.metrics.recordEviction(kindEvent, evicted)
		if framesEvicted > 0 {
			s.metrics.recordEviction(kindFrame, framesEvicted)
		}
		s.metrics.updateSize(kindFrame, s.frames.len(), s.opts.frameCapacity)
	}
	s.logger.Debug("Culled events",
		"evicted", evicted,
		"remaining", s.events.len(),
		"frames_evicted", framesEvicted)
}

// rebaseFramesLocked shifts stored frame timestamps back by delta and evicts
// frames that now precede the anchor.
func (s *Stream) rebaseFramesLocked(delta int64) int {
	if delta == 0 || s.frames.len() == 0 {
		return 0
	}
	for i := range s.frames.items {
		s.frames.items[i].Timestamp -= delta
	}
	k := s.frames.lowerBound(0)
	s.frames.evictFront(k)
	return k
}

// InsertFrame adds one frame. Frames arriving while no event is stored are
// dropped. Otherwise the frame is stored relative to the earliest event.
func (s *Stream) InsertFrame(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.frameInserted()
	anchor, ok := s.events.first()
	if !ok {
		s.stats.anchorDrop()
		if s.metrics != nil {
			s.metrics.recordDrop("no_anchor")
		}
		s.logger.Debug("Dropped frame with no events to anchor it", "timestamp", f.Timestamp)
		return
	}

	f.Timestamp -= anchor

	switch s.frames.insert(f, s.opts.resetPolicy, s.opts.reorderTolerance) {
	case wasReset:
		s.stats.frameReset()
		if s.metrics != nil {
			s.metrics.recordReset(kindFrame)
		}
		s.logger.Warn("Frame timestamp regressed, frames reset", "timestamp", f.Timestamp+anchor)
	case dropped:
		s.stats.outOfOrderDrop()
		if s.metrics != nil {
			s.metrics.recordDrop("out_of_order")
		}
		return
	case reordered:
		s.stats.reorder()
	}

	if n := s.frames.cull(); n > 0 {
		s.stats.framesEvictedBy(n)
		if s.metrics != nil {
			s.metrics.recordEviction(kindFrame, n)
		}
	}

	if s.metrics != nil {
		s.metrics.recordInsert(kindFrame, s.frames.len(), s.opts.frameCapacity)
	}
}

// Clear empties both sub-streams.
func (s *Stream) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events.clear()
	s.frames.clear()
	s.stats.cleared()
	if s.metrics != nil {
		s.metrics.updateSize(kindEvent, 0, s.opts.eventCapacity)
		s.metrics.updateSize(kindFrame, 0, s.opts.frameCapacity)
	}
}

// Acquire locks the stream for reading and returns a View over it. Producers
// block until the View is released. Every Acquire must be paired with exactly
// one Release.
func (s *Stream) Acquire() *View {
	s.mu.Lock()
	return &View{s: s}
}

// Read runs fn while holding the stream lock.
func (s *Stream) Read(fn func(v *View)) {
	v := s.Acquire()
	defer v.Release()
	fn(v)
}
