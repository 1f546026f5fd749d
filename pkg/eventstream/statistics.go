package eventstream

import (
	"sync/atomic"
	"time"
)

// Statistics tracks stream activity. All counters are updated atomically.
type Statistics struct {
	eventInserts    atomic.Int64
	frameInserts    atomic.Int64
	eventResets     atomic.Int64
	frameResets     atomic.Int64
	reorders        atomic.Int64
	outOfOrderDrops atomic.Int64
	anchorDrops     atomic.Int64
	culls           atomic.Int64
	eventsEvicted   atomic.Int64
	framesEvicted   atomic.Int64
	clears          atomic.Int64
	startTime       atomic.Int64
}

// Summary is a point-in-time copy of Statistics.
type Summary struct {
	EventInserts    int64         `json:"event_inserts"`
	FrameInserts    int64         `json:"frame_inserts"`
	EventResets     int64         `json:"event_resets"`
	FrameResets     int64         `json:"frame_resets"`
	Reorders        int64         `json:"reorders"`
	OutOfOrderDrops int64         `json:"out_of_order_drops"`
	AnchorDrops     int64         `json:"anchor_drops"`
	Culls           int64         `json:"culls"`
	EventsEvicted   int64         `json:"events_evicted"`
	FramesEvicted   int64         `json:"frames_evicted"`
	Clears          int64         `json:"clears"`
	Uptime          time.Duration `json:"uptime"`
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.startTime.Store(time.Now().UnixNano())
	return s
}

func (s *Statistics) eventInserted() { s.eventInserts.Add(1) }
func (s *Statistics) frameInserted() { s.frameInserts.Add(1) }
func (s *Statistics) eventReset() { s.eventResets.Add(1) }
func (s *Statistics) frameReset() { s.frameResets.Add(1) }
func (s *Statistics) reorder() { s.reorders.Add(1) }
func (s *Statistics) outOfOrderDrop() { s.outOfOrderDrops.Add(1) }
func (s *Statistics) anchorDrop() { s.anchorDrops.Add(1) }
func (s *Statistics) cleared() { s.clears.Add(1) }

func (s *Statistics) culled(events, frames int) {
	s.culls.Add(1)
	s.eventsEvicted.Add(int64(events))
	s.framesEvicted.Add(int64(frames))
}

func (s *Statistics) framesEvictedBy(n int) {
	s.framesEvicted.Add(int64(n))
}

// EventInserts returns the number of InsertEvent calls.
func (s *Statistics) EventInserts() int64 { return s.eventInserts.Load() }

// FrameInserts returns the number of InsertFrame calls.
func (s *Statistics) FrameInserts() int64 { return s.frameInserts.Load() }

// EventResets returns how often the event sub-stream was reset.
func (s *Statistics) EventResets() int64 { return s.eventResets.Load() }

// FrameResets returns how often the frame sub-stream was reset on its own.
func (s *Statistics) FrameResets() int64 { return s.frameResets.Load() }

// AnchorDrops returns the number of frames dropped for lack of events.
func (s *Statistics) AnchorDrops() int64 { return s.anchorDrops.Load() }

// Summary returns a consistent-enough copy of all counters.
func (s *Statistics) Summary() Summary {
	return Summary{
		EventInserts:    s.eventInserts.Load(),
		FrameInserts:    s.frameInserts.Load(),
		EventResets:     s.eventResets.Load(),
		FrameResets:     s.frameResets.Load(),
		Reorders:        s.reorders.Load(),
		OutOfOrderDrops: s.outOfOrderDrops.Load(),
		AnchorDrops:     s.anchorDrops.Load(),
		Culls:           s.culls.Load(),
		EventsEvicted:   s.eventsEvicted.Load(),
		FramesEvicted:   s.framesEvicted.Load(),
		Clears:          s.clears.Load(),
		Uptime:          time.Since(time.Unix(0, s.startTime.Load())),
	}
}
