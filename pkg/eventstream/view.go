package eventstream

import (
	"math"
)

// View is read access to a locked Stream. Slices returned by the Slice
// methods alias stream storage and must not be used after Release; the
// other exporters return copies.
type View struct {
	s *Stream
}

// Release unlocks the stream. Releasing twice panics.
func (v *View) Release() {
	s := v.s
	if s == nil {
		panic("eventstream: View released twice")
	}
	v.s = nil
	s.mu.Unlock()
}

// EventCount returns the number of stored events.
func (v *View) EventCount() int {
	return v.s.events.len()
}

// FrameCount returns the number of stored frames.
func (v *View) FrameCount() int {
	return v.s.frames.len()
}

// EarliestEventTimestamp returns the anchor, the absolute timestamp of the
// first stored event.
func (v *View) EarliestEventTimestamp() (int64, bool) {
	return v.s.events.first()
}

// LatestEventTimestamp returns the absolute timestamp of the newest event.
func (v *View) LatestEventTimestamp() (int64, bool) {
	return v.s.events.last()
}

// MaxRelativeTime is the span from first to last event, 0 when empty.
func (v *View) MaxRelativeTime() float64 {
	first, ok := v.s.events.first()
	if !ok {
		return 0
	}
	last, _ := v.s.events.last()
	return float64(last - first)
}

// EventsAbsolute returns a copy of the stored events.
func (v *View) EventsAbsolute() []Event {
	return append([]Event(nil), v.s.events.items...)
}

// EventsRelative returns a copy of the stored events with the anchor
// subtracted, so the first event has timestamp 0.
func (v *View) EventsRelative() []Event {
	out := v.EventsAbsolute()
	if len(out) == 0 {
		return out
	}
	anchor := out[0].Timestamp
	for i := range out {
		out[i].Timestamp -= anchor
	}
	return out
}

// FramesAnchored returns the frames with timestamps relative to the event
// anchor, as stored.
func (v *View) FramesAnchored() []TimedFrame {
	return v.exportFrames(0)
}

// FramesAbsolute returns the frames with the anchor added back.
func (v *View) FramesAbsolute() []TimedFrame {
	anchor, _ := v.s.events.first()
	return v.exportFrames(anchor)
}

// FramesRelative returns the frames shifted so the first has timestamp 0.
func (v *View) FramesRelative() []TimedFrame {
	first, ok := v.s.frames.first()
	if !ok {
		return []TimedFrame{}
	}
	return v.exportFrames(-first)
}

func (v *View) exportFrames(offset int64) []TimedFrame {
	frames := v.s.frames.items
	out := make([]TimedFrame, len(frames))
	for i := range frames {
		out[i] = TimedFrame{
			Image:     frames[i].Image,
			Timestamp: float64(frames[i].Timestamp + offset),
		}
	}
	return out
}

// IndexOfFirstAtOrAfter returns the smallest index whose absolute event
// timestamp is >= ts, or NotFound.
func (v *View) IndexOfFirstAtOrAfter(ts int64) int {
	i := v.s.events.lowerBound(ts)
	if i >= v.s.events.len() {
		return NotFound
	}
	return i
}

// IndexAtRelativeTime maps a time relative to the anchor to the first event
// at or after it. Fractional times round up.
func (v *View) IndexAtRelativeTime(t float64) int {
	anchor, ok := v.s.events.first()
	if !ok {
		return NotFound
	}
	return v.IndexOfFirstAtOrAfter(anchor + int64(math.Ceil(t)))
}

// RelativeTimeAt returns the relative timestamp of event i. The index is
// clamped into range; an empty stream yields 0.
func (v *View) RelativeTimeAt(i int) float64 {
	n := v.s.events.len()
	if n == 0 {
		return 0
	}
	i = min(max(i, 0), n-1)
	return float64(v.s.events.ts(i) - v.s.events.ts(0))
}

// FrameIndexAtOrAfter returns the first frame whose anchored timestamp is
// >= t, or NotFound.
func (v *View) FrameIndexAtOrAfter(t float64) int {
	i := v.s.frames.lowerBound(int64(math.Ceil(t)))
	if i >= v.s.frames.len() {
		return NotFound
	}
	return i
}

// FrameIndexAtOrBefore returns the last frame whose anchored timestamp is
// <= t, or NotFound.
func (v *View) FrameIndexAtOrBefore(t float64) int {
	i := v.s.frames.upperBound(int64(math.Floor(t)))
	if i == 0 {
		return NotFound
	}
	return i - 1
}

// SliceEvents returns events lower..current inclusive, clamped to the stored
// range. The result aliases stream storage.
func (v *View) SliceEvents(lower, current int) []Event {
	lo, hi, ok := clampRange(lower, current, v.s.events.len())
	if !ok {
		return nil
	}
	return v.s.events.items[lo : hi+1 : hi+1]
}

// SliceFrames returns frames lower..current inclusive with anchored
// timestamps. The result aliases stream storage.
func (v *View) SliceFrames(lower, current int) []Frame {
	lo, hi, ok := clampRange(lower, current, v.s.frames.len())
	if !ok {
		return nil
	}
	return v.s.frames.items[lo : hi+1 : hi+1]
}

func clampRange(lower, current, n int) (int, int, bool) {
	if n == 0 {
		return 0, 0, false
	}
	lo := max(lower, 0)
	hi := min(current, n-1)
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}
