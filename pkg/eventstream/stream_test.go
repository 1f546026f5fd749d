package eventstream

import (
	"image"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/metric"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(ts int64) Event {
	return Event{X: int32(ts % 640), Y: int32(ts % 480), Timestamp: ts, Polarity: uint8(ts % 2)}
}

func fr(ts int64) Frame {
	return Frame{Image: image.NewGray(image.Rect(0, 0, 2, 2)), Timestamp: ts}
}

func timestamps(events []Event) []int64 {
	out := make([]int64, len(events))
	for i, e := range events {
		out[i] = e.Timestamp
	}
	return out
}

func frameTimestamps(frames []TimedFrame) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f.Timestamp
	}
	return out
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero event capacity", []Option{WithEventCapacity(0)}},
		{"negative frame capacity", []Option{WithFrameCapacity(-1)}},
		{"low above high", []Option{WithWatermarks(0.5, 0.9)}},
		{"high above one", []Option{WithWatermarks(1.5, 0.5)}},
		{"zero low", []Option{WithWatermarks(0.9, 0)}},
		{"negative tolerance", []Option{WithReorderTolerance(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.opts...)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.IsInvalid(err))
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestInsertEvent_Ordered(t *testing.T) {
	s := MustNew()
	for _, ts := range []int64{10, 20, 20, 35} {
		s.InsertEvent(ev(ts))
	}

	v := s.Acquire()
	defer v.Release()
	assert.Equal(t, 4, v.EventCount())
	assert.Equal(t, []int64{10, 20, 20, 35}, timestamps(v.EventsAbsolute()))
	first, ok := v.EarliestEventTimestamp()
	assert.True(t, ok)
	assert.Equal(t, int64(10), first)
	last, ok := v.LatestEventTimestamp()
	assert.True(t, ok)
	assert.Equal(t, int64(35), last)
}

func TestInsertEvent_RegressionResetsStream(t *testing.T) {
	s := MustNew()
	s.InsertEvent(ev(10))
	s.InsertEvent(ev(20))
	s.InsertEvent(ev(30))
	s.InsertFrame(fr(25))
	s.InsertEvent(ev(15))

	v := s.Acquire()
	defer v.Release()
	assert.Equal(t, []int64{15}, timestamps(v.EventsAbsolute()))
	assert.Equal(t, 0, v.FrameCount(), "event reset empties frames")
	assert.Equal(t, int64(1), s.Stats().EventResets())
}

func TestInsertEvent_DropPolicy(t *testing.T) {
	s := MustNew(WithResetPolicy(ResetDrop))
	s.InsertEvent(ev(10))
	s.InsertEvent(ev(20))
	s.InsertEvent(ev(15))

	v := s.Acquire()
	defer v.Release()
	assert.Equal(t, []int64{10, 20}, timestamps(v.EventsAbsolute()))
	assert.Equal(t, int64(1), s.Stats().Summary().OutOfOrderDrops)
	assert.Zero(t, s.Stats().EventResets())
}

func TestInsertEvent_ReorderPolicy(t *testing.T) {
	s := MustNew(WithResetPolicy(ResetReorder), WithReorderTolerance(10))
	s.InsertEvent(ev(10))
	s.InsertEvent(ev(20))
	s.InsertEvent(ev(15))

	v := s.Acquire()
	assert.Equal(t, []int64{10, 15, 20}, timestamps(v.EventsAbsolute()))
	v.Release()
	assert.Equal(t, int64(1), s.Stats().Summary().Reorders)

	// beyond tolerance behaves like a reset
	s.InsertEvent(ev(5))
	v = s.Acquire()
	assert.Equal(t, []int64{5}, timestamps(v.EventsAbsolute()))
	v.Release()

	// within tolerance but ahead of the anchor also resets
	s.InsertEvent(ev(8))
	s.InsertEvent(ev(4))
	v = s.Acquire()
	assert.Equal(t, []int64{4}, timestamps(v.EventsAbsolute()))
	v.Release()
	assert.Equal(t, int64(2), s.Stats().EventResets())
}

func TestRelativeExport(t *testing.T) {
	s := MustNew()
	for _, ts := range []int64{100, 150, 400} {
		s.InsertEvent(ev(ts))
	}

	v := s.Acquire()
	defer v.Release()
	rel := v.EventsRelative()
	assert.Equal(t, []int64{0, 50, 300}, timestamps(rel))
	assert.Equal(t, 300.0, v.MaxRelativeTime())

	// the export is a copy
	rel[0].Timestamp = 999
	assert.Equal(t, int64(100), v.EventsAbsolute()[0].Timestamp)
}

func TestEmptyStream(t *testing.T) {
	s := MustNew()
	v := s.Acquire()
	defer v.Release()

	assert.Zero(t, v.EventCount())
	assert.Zero(t, v.FrameCount())
	assert.Zero(t, v.MaxRelativeTime())
	assert.Zero(t, v.RelativeTimeAt(3))
	assert.Empty(t, v.EventsRelative())
	assert.Empty(t, v.FramesRelative())
	assert.Equal(t, NotFound, v.IndexOfFirstAtOrAfter(0))
	assert.Equal(t, NotFound, v.IndexAtRelativeTime(0))
	assert.Nil(t, v.SliceEvents(0, 10))
	_, ok := v.EarliestEventTimestamp()
	assert.False(t, ok)
}

func TestFrameAnchoring(t *testing.T) {
	s := MustNew()
	s.InsertFrame(fr(900))
	assert.Equal(t, int64(1), s.Stats().AnchorDrops(), "frame without events is dropped")

	s.InsertEvent(ev(1000))
	s.InsertEvent(ev(1400))
	s.InsertFrame(fr(1250))
	s.InsertFrame(fr(1300))

	v := s.Acquire()
	defer v.Release()
	assert.Equal(t, 2, v.FrameCount())
	assert.Equal(t, []float64{250, 300}, frameTimestamps(v.FramesAnchored()))
	assert.Equal(t, []float64{1250, 1300}, frameTimestamps(v.FramesAbsolute()))
	assert.Equal(t, []float64{0, 50}, frameTimestamps(v.FramesRelative()))
}

func TestInsertFrame_RegressionResetsFramesOnly(t *testing.T) {
	s := MustNew()
	s.InsertEvent(ev(0))
	s.InsertFrame(fr(100))
	s.InsertFrame(fr(50))

	v := s.Acquire()
	defer v.Release()
	assert.Equal(t, []float64{50}, frameTimestamps(v.FramesAnchored()))
	assert.Equal(t, 1, v.EventCount())
	assert.Equal(t, int64(1), s.Stats().FrameResets())
	assert.Zero(t, s.Stats().EventResets())
}

func TestLookup(t *testing.T) {
	s := MustNew()
	for _, ts := range []int64{0, 123, 1002} {
		s.InsertEvent(ev(ts))
	}

	v := s.Acquire()
	defer v.Release()

	tests := []struct {
		ts   int64
		want int
	}{
		{0, 0},
		{123, 1},
		{1002, 2},
		{500, 2},
		{10000, NotFound},
		{-5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, v.IndexOfFirstAtOrAfter(tt.ts), "ts=%d", tt.ts)
	}

	assert.Equal(t, 1, v.IndexAtRelativeTime(122.5), "fractional times round up")
	assert.Equal(t, 2, v.IndexAtRelativeTime(500))
	assert.Equal(t, 123.0, v.RelativeTimeAt(1))
	assert.Equal(t, 1002.0, v.RelativeTimeAt(99), "index clamps to the last event")
}

func TestLookup_RelativeToAnchor(t *testing.T) {
	s := MustNew()
	for _, ts := range []int64{5000, 5123, 6002} {
		s.InsertEvent(ev(ts))
	}

	v := s.Acquire()
	defer v.Release()
	assert.Equal(t, 2, v.IndexAtRelativeTime(500))
	assert.Equal(t, NotFound, v.IndexAtRelativeTime(1003))
	assert.Equal(t, 1002.0, v.MaxRelativeTime())
}

func TestSliceEvents_Clamps(t *testing.T) {
	s := MustNew()
	for ts := int64(0); ts < 10; ts++ {
		s.InsertEvent(ev(ts))
	}

	v := s.Acquire()
	defer v.Release()
	assert.Equal(t, []int64{0, 1, 2}, timestamps(v.SliceEvents(-3, 2)))
	assert.Equal(t, []int64{8, 9}, timestamps(v.SliceEvents(8, 20)))
	assert.Nil(t, v.SliceEvents(5, 4))
	assert.Len(t, v.SliceEvents(0, 9), 10)
}

func TestFrameIndexLookups(t *testing.T) {
	s := MustNew()
	s.InsertEvent(ev(0))
	for _, ts := range []int64{10, 20, 30} {
		s.InsertFrame(fr(ts))
	}

	v := s.Acquire()
	defer v.Release()
	assert.Equal(t, 0, v.FrameIndexAtOrAfter(5))
	assert.Equal(t, 1, v.FrameIndexAtOrAfter(20))
	assert.Equal(t, NotFound, v.FrameIndexAtOrAfter(31))
	assert.Equal(t, NotFound, v.FrameIndexAtOrBefore(9))
	assert.Equal(t, 1, v.FrameIndexAtOrBefore(25))
	assert.Equal(t, 2, v.FrameIndexAtOrBefore(100))
	assert.Len(t, v.SliceFrames(1, 2), 2)
}

func TestCull_StaysWithinCapacity(t *testing.T) {
	s := MustNew(WithEventCapacity(100))

	for ts := int64(0); ts < 89; ts++ {
		s.InsertEvent(ev(ts))
	}
	v := s.Acquire()
	assert.Equal(t, 89, v.EventCount())
	v.Release()

	// reaching the high watermark culls to the low watermark
	s.InsertEvent(ev(89))
	v = s.Acquire()
	assert.Equal(t, 50, v.EventCount())
	first, _ := v.EarliestEventTimestamp()
	assert.Equal(t, int64(40), first, "oldest events go first")
	v.Release()

	for ts := int64(90); ts < 5000; ts++ {
		s.InsertEvent(ev(ts))
		v := s.Acquire()
		n := v.EventCount()
		v.Release()
		require.LessOrEqual(t, n, 100)
	}
	v = s.Acquire()
	remaining := int64(v.EventCount())
	v.Release()
	assert.Equal(t, int64(5000), s.Stats().Summary().EventsEvicted+remaining)
}

func TestCull_RebasesFrames(t *testing.T) {
	// capacity 10 culls at 9 down to 5
	s := MustNew(WithEventCapacity(10))
	for ts := int64(0); ts < 8; ts++ {
		s.InsertEvent(ev(ts * 10))
	}
	s.InsertFrame(fr(20))
	s.InsertFrame(fr(60))

	s.InsertEvent(ev(80))

	v := s.Acquire()
	defer v.Release()
	first, _ := v.EarliestEventTimestamp()
	assert.Equal(t, int64(40), first)
	assert.Equal(t, []float64{20}, frameTimestamps(v.FramesAnchored()))
	assert.Equal(t, []float64{60}, frameTimestamps(v.FramesAbsolute()))
	assert.Equal(t, int64(1), s.Stats().Summary().FramesEvicted)
}

func TestCull_EmptiedEventsDropFrames(t *testing.T) {
	// capacity 10 with a 0.05 low watermark culls at 9 down to nothing
	s := MustNew(WithEventCapacity(10), WithWatermarks(0.9, 0.05))
	for ts := int64(100); ts < 108; ts++ {
		s.InsertEvent(ev(ts))
	}
	s.InsertFrame(fr(103))
	s.InsertEvent(ev(108))

	s.Read(func(v *View) {
		assert.Zero(t, v.EventCount())
		assert.Zero(t, v.FrameCount())
	})
	assert.Equal(t, int64(1), s.Stats().Summary().FramesEvicted)

	// a later event must not pick up the old frame under a new anchor
	s.InsertEvent(ev(500))
	s.Read(func(v *View) {
		assert.Equal(t, 1, v.EventCount())
		assert.Empty(t, v.FramesAbsolute())
	})
}

func TestInsert_OrderingHoldsForRandomSequences(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
	}{
		{"clear", []Option{WithResetPolicy(ResetClear)}},
		{"drop", []Option{WithResetPolicy(ResetDrop)}},
		{"reorder", []Option{WithResetPolicy(ResetReorder), WithReorderTolerance(50)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithEventCapacity(64), WithFrameCapacity(16)}, tt.options...)
			s := MustNew(opts...)
			rng := rand.New(rand.NewPCG(7, 11))

			ts := int64(1000)
			for i := 0; i < 5000; i++ {
				switch r := rng.IntN(100); {
				case r < 5:
					ts -= rng.Int64N(200)
				case r < 15:
					ts -= rng.Int64N(40)
				default:
					ts += rng.Int64N(20)
				}
				if rng.IntN(10) == 0 {
					s.InsertFrame(fr(ts + rng.Int64N(60) - 30))
				} else {
					s.InsertEvent(ev(ts))
				}

				s.Read(func(v *View) {
					events := timestamps(v.EventsAbsolute())
					frames := frameTimestamps(v.FramesAbsolute())
					require.True(t, slices.IsSorted(events), "step %d: events %v", i, events)
					require.True(t, slices.IsSorted(frames), "step %d: frames %v", i, frames)
					require.LessOrEqual(t, len(events), 64)
					require.LessOrEqual(t, len(frames), 16)
				})
			}
		})
	}
}

func TestClear(t *testing.T) {
	s := MustNew()
	s.InsertEvent(ev(1))
	s.InsertFrame(fr(2))
	s.Clear()

	s.Read(func(v *View) {
		assert.Zero(t, v.EventCount())
		assert.Zero(t, v.FrameCount())
	})
	assert.Equal(t, int64(1), s.Stats().Summary().Clears)
}

func TestView_DoubleReleasePanics(t *testing.T) {
	s := MustNew()
	v := s.Acquire()
	v.Release()
	assert.Panics(t, func() { v.Release() })
}

func TestMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	s, err := New(WithEventCapacity(10), WithMetrics(registry, "test"))
	require.NoError(t, err)

	s.InsertFrame(fr(1))
	for ts := int64(0); ts < 9; ts++ {
		s.InsertEvent(ev(ts))
	}
	s.InsertEvent(ev(3))

	assert.Equal(t, 10.0, testutil.ToFloat64(s.metrics.inserts.WithLabelValues(kindEvent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.resets.WithLabelValues(kindEvent)))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.metrics.evictions.WithLabelValues(kindEvent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.drops.WithLabelValues("no_anchor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.size.WithLabelValues(kindEvent)))

	// the same name cannot be registered twice
	_, err = New(WithMetrics(registry, "test"))
	require.Error(t, err)
}

func TestConcurrentProducerAndReader(t *testing.T) {
	s := MustNew(WithEventCapacity(1000), WithFrameCapacity(16))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for ts := int64(0); ts < 20000; ts++ {
			s.InsertEvent(ev(ts))
			if ts%100 == 0 {
				s.InsertFrame(fr(ts))
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			v := s.Acquire()
			events := v.SliceEvents(0, v.EventCount()-1)
			for j := 1; j < len(events); j++ {
				if events[j].Timestamp < events[j-1].Timestamp {
					t.Errorf("events out of order at %d", j)
					break
				}
			}
			if len(events) > 1000 {
				t.Errorf("stored %d events above capacity", len(events))
			}
			for _, f := range v.FramesAnchored() {
				if f.Timestamp < 0 {
					t.Errorf("frame precedes anchor: %v", f.Timestamp)
				}
			}
			v.Release()
		}
	}()

	wg.Wait()
	assert.Equal(t, int64(20000), s.Stats().EventInserts())
	assert.Zero(t, s.Stats().EventResets())
}

func TestParseResetPolicy(t *testing.T) {
	for _, p := range []ResetPolicy{ResetClear, ResetDrop, ResetReorder} {
		got, err := ParseResetPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	got, err := ParseResetPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ResetClear, got)

	_, err = ParseResetPolicy("rewind")
	assert.Error(t, err)
}
