package session

import (
	"github.com/c360/eventscope/pkg/eventstream"
	"github.com/c360/eventscope/pkg/window"
)

// FrameInfo describes the frame shown at the window's current time.
type FrameInfo struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// Snapshot is what one tick produces for renderers.
type Snapshot struct {
	SessionID string        `json:"session_id"`
	Source    string        `json:"source"`
	Sequence  uint64        `json:"sequence"`
	Window    window.Window `json:"window"`

	// Events inside the window with timestamps relative to the anchor,
	// thinned to at most the configured limit.
	Events      []eventstream.Event `json:"events"`
	EventsTotal int                 `json:"events_total"`

	Frame      *FrameInfo          `json:"frame,omitempty"`
	FrameCount int                 `json:"frame_count"`
	Stats      eventstream.Summary `json:"stats"`
}

// copyWindowEvents copies events with the anchor subtracted, keeping at most
// limit of them by taking every k-th event. The newest event is always kept.
func copyWindowEvents(events []eventstream.Event, anchor int64, limit int) []eventstream.Event {
	n := len(events)
	if n == 0 {
		return []eventstream.Event{}
	}
	stride := 1
	if limit > 0 && n > limit {
		stride = (n + limit - 1) / limit
	}

	out := make([]eventstream.Event, 0, n/stride+1)
	for i := (n - 1) % stride; i < n; i += stride {
		e := events[i]
		e.Timestamp -= anchor
		out = append(out, e)
	}
	return out
}
