package window

import (
	"testing"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/pkg/eventstream"
	"github.com/c360/eventscope/pkg/paramstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamOf(timestamps ...int64) *eventstream.Stream {
	s := eventstream.MustNew()
	for _, ts := range timestamps {
		s.InsertEvent(eventstream.Event{Timestamp: ts})
	}
	return s
}

func rangeStream(n int) *eventstream.Stream {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(i)
	}
	return streamOf(ts...)
}

func update(t *testing.T, c *Controller, s *eventstream.Stream) Window {
	t.Helper()
	v := s.Acquire()
	defer v.Release()
	w, err := c.Update(v)
	require.NoError(t, err)
	return w
}

func newSeeded(store *paramstore.Store, opts ...Option) *Controller {
	c := NewController(store, opts...)
	c.Seed()
	return c
}

func TestIndexPlaying_AdvancesByStep(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store)
	paramstore.Set(store, KeyDomain, "event_index")
	paramstore.Set(store, KeyMode, "playing")
	paramstore.Set(store, KeyIndexCurrent, int64(10))
	paramstore.Set(store, KeyIndexStep, int64(5))
	paramstore.Set(store, KeyIndexWindow, int64(20))

	s := rangeStream(100)
	w := update(t, c, s)
	assert.Equal(t, 15, w.CurrentIndex)
	assert.Equal(t, 0, w.LowerIndex)
	assert.Equal(t, 99, w.MaxIndex)

	assert.Equal(t, int64(15), paramstore.GetOr(store, KeyWindowIndexCurrent, int64(-1)))
	assert.Equal(t, int64(0), paramstore.GetOr(store, KeyWindowIndexLower, int64(-1)))
	assert.Equal(t, int64(99), paramstore.GetOr(store, KeyWindowIndexMax, int64(-1)))

	w = update(t, c, s)
	assert.Equal(t, 20, w.CurrentIndex)
	assert.Equal(t, 0, w.LowerIndex)

	w = update(t, c, s)
	assert.Equal(t, 25, w.CurrentIndex)
	assert.Equal(t, 5, w.LowerIndex)
	assert.Equal(t, 25.0, w.CurrentTime)
	assert.Equal(t, 5.0, w.LowerTime)
}

func TestIndexPlaying_StopsAtEnd(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store)
	paramstore.Set(store, KeyMode, "playing")
	paramstore.Set(store, KeyIndexCurrent, int64(97))
	paramstore.Set(store, KeyIndexStep, int64(5))
	paramstore.Set(store, KeyIndexWindow, int64(10))

	w := update(t, c, rangeStream(100))
	assert.Equal(t, 99, w.CurrentIndex)
	assert.Equal(t, 89, w.LowerIndex)
}

func TestIndexPaused_Clamps(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store)
	paramstore.Set(store, KeyMode, "paused")
	paramstore.Set(store, KeyIndexCurrent, int64(500))
	paramstore.Set(store, KeyIndexWindow, int64(1000))
	paramstore.Set(store, KeyIndexStep, int64(-3))

	w := update(t, c, rangeStream(100))
	assert.Equal(t, 99, w.CurrentIndex)
	assert.Equal(t, 0, w.LowerIndex)

	// paused does not advance
	w = update(t, c, rangeStream(100))
	assert.Equal(t, 99, w.CurrentIndex)
}

func TestIndexLatest_FollowsTail(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store)
	paramstore.Set(store, KeyMode, "latest")
	paramstore.Set(store, KeyIndexWindow, int64(30))

	s := rangeStream(100)
	w := update(t, c, s)
	assert.Equal(t, 99, w.CurrentIndex)
	assert.Equal(t, 69, w.LowerIndex)

	s.InsertEvent(eventstream.Event{Timestamp: 100})
	w = update(t, c, s)
	assert.Equal(t, 100, w.CurrentIndex)
	assert.Equal(t, 70, w.LowerIndex)
}

func TestTimeLatest(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store)
	paramstore.Set(store, KeyDomain, "time")
	paramstore.Set(store, KeyMode, "latest")
	paramstore.Set(store, KeyTimeWindow, 10.0)

	w := update(t, c, streamOf(1000, 1010, 1020, 1030, 1040, 1050))
	assert.Equal(t, 50.0, w.CurrentTime)
	assert.Equal(t, 40.0, w.LowerTime)
	assert.Equal(t, 50.0, w.MaxTime)
	assert.Equal(t, 5, w.CurrentIndex)
	assert.Equal(t, 4, w.LowerIndex)

	assert.Equal(t, 50.0, paramstore.GetOr(store, KeyWindowTimeCurrent, -1.0))
	assert.Equal(t, 40.0, paramstore.GetOr(store, KeyWindowTimeLower, -1.0))
	assert.Equal(t, 0.0, paramstore.GetOr(store, KeyWindowTimeMin, -1.0))
}

func TestTimePlaying(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store)
	paramstore.Set(store, KeyDomain, "time")
	paramstore.Set(store, KeyMode, "playing")
	paramstore.Set(store, KeyTimeCurrent, 0.0)
	paramstore.Set(store, KeyTimeStep, 100.0)
	paramstore.Set(store, KeyTimeWindow, 150.0)

	s := streamOf(0, 123, 1002)
	w := update(t, c, s)
	assert.Equal(t, 100.0, w.CurrentTime)
	assert.Equal(t, 0.0, w.LowerTime)
	assert.Equal(t, 1, w.CurrentIndex)

	w = update(t, c, s)
	assert.Equal(t, 200.0, w.CurrentTime)
	assert.Equal(t, 50.0, w.LowerTime)
	assert.Equal(t, 2, w.CurrentIndex)
	assert.Equal(t, 1, w.LowerIndex)
}

func TestTimeDomain_DerivesIndexWindow(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store)
	paramstore.Set(store, KeyDomain, "time")
	paramstore.Set(store, KeyMode, "paused")
	paramstore.Set(store, KeyTimeCurrent, 500.0)
	paramstore.Set(store, KeyTimeWindow, 0.0)

	s := streamOf(0, 123, 1002)
	w := update(t, c, s)
	assert.Equal(t, 500.0, w.CurrentTime)
	assert.Equal(t, 2, w.CurrentIndex, "first timestamp at or after 500")
	assert.Equal(t, 2, w.LowerIndex)

	paramstore.Set(store, KeyTimeWindow, 400.0)
	w = update(t, c, s)
	assert.Equal(t, 100.0, w.LowerTime)
	assert.Equal(t, 1, w.LowerIndex)
}

func TestDomainSwitch_ResumesInPlace(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store)
	paramstore.Set(store, KeyDomain, "time")
	paramstore.Set(store, KeyMode, "paused")
	paramstore.Set(store, KeyTimeCurrent, 500.0)

	s := streamOf(0, 123, 1002)
	update(t, c, s)
	assert.Equal(t, int64(2), paramstore.GetOr(store, KeyIndexCurrent, int64(-1)))

	paramstore.Set(store, KeyDomain, "event_index")
	w := update(t, c, s)
	assert.Equal(t, DomainEventIndex, w.Domain)
	assert.Equal(t, 2, w.CurrentIndex)
	assert.Equal(t, 1002.0, w.CurrentTime, "index to time is a direct lookup")
}

func TestEmptyStream(t *testing.T) {
	for _, domain := range []string{"event_index", "time"} {
		for _, mode := range []string{"paused", "playing", "latest"} {
			t.Run(domain+"/"+mode, func(t *testing.T) {
				store := paramstore.New()
				c := newSeeded(store)
				paramstore.Set(store, KeyDomain, domain)
				paramstore.Set(store, KeyMode, mode)
				paramstore.Set(store, KeyIndexCurrent, int64(50))
				paramstore.Set(store, KeyTimeCurrent, 50.0)

				w := update(t, c, streamOf())
				assert.True(t, w.Empty())
				assert.Zero(t, w.CurrentIndex)
				assert.Zero(t, w.LowerIndex)
				assert.Zero(t, w.CurrentTime)
				assert.Zero(t, w.LowerTime)
				assert.Equal(t, int64(0), paramstore.GetOr(store, KeyWindowIndexCurrent, int64(-1)))
			})
		}
	}
}

func TestStrict_MissingKeyFails(t *testing.T) {
	store := paramstore.New()
	c := NewController(store, WithStrict(true))

	v := streamOf(1, 2).Acquire()
	defer v.Release()
	_, err := c.Update(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
	assert.True(t, errors.IsInvalid(err))
	assert.False(t, store.Exists(KeyWindowIndexCurrent), "nothing published on failure")
}

func TestStrict_BadEnumFails(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store, WithStrict(true))
	paramstore.Set(store, KeyMode, "rewinding")

	v := streamOf(1, 2).Acquire()
	defer v.Release()
	_, err := c.Update(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidData)
}

func TestStrict_TypeMismatchFails(t *testing.T) {
	store := paramstore.New()
	c := newSeeded(store, WithStrict(true))
	paramstore.Set(store, KeyIndexStep, "five")

	v := streamOf(1, 2).Acquire()
	defer v.Release()
	_, err := c.Update(v)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
}

func TestLenient_RestoresDefaults(t *testing.T) {
	store := paramstore.New()
	c := NewController(store)
	paramstore.Set(store, KeyMode, "rewinding")
	paramstore.Set(store, KeyIndexWindow, "wide")

	w := update(t, c, rangeStream(20000))
	assert.Equal(t, ModeLatest, w.Mode)
	assert.Equal(t, 19999, w.CurrentIndex)
	assert.Equal(t, 9999, w.LowerIndex)

	assert.Equal(t, "latest", paramstore.GetOr(store, KeyMode, ""))
	assert.Equal(t, int64(10000), paramstore.GetOr(store, KeyIndexWindow, int64(0)))
	assert.True(t, store.Exists(KeyTimeStep))
}

func TestSeed_KeepsExistingValues(t *testing.T) {
	store := paramstore.New()
	paramstore.Set(store, KeyMode, "paused")
	c := NewController(store, WithDefaults(State{Mode: ModePlaying, IndexStep: 7}))
	c.Seed()

	assert.Equal(t, "paused", paramstore.GetOr(store, KeyMode, ""))
	assert.Equal(t, int64(7), paramstore.GetOr(store, KeyIndexStep, int64(0)))
	for _, key := range WritableKeys {
		assert.True(t, store.Exists(key), key)
	}
}

func TestParseDomainAndMode(t *testing.T) {
	d, err := ParseDomain("TIME")
	require.NoError(t, err)
	assert.Equal(t, DomainTime, d)
	_, err = ParseDomain("space")
	assert.Error(t, err)

	for _, m := range []Mode{ModePaused, ModePlaying, ModeLatest} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestCompute_WithFakeExtents(t *testing.T) {
	ext := fakeExtents{timestamps: []float64{0, 10, 20, 30}}
	w := Compute(State{Domain: DomainTime, Mode: ModePaused, TimeCurrent: 35, TimeWindow: 12}, ext)
	assert.Equal(t, 30.0, w.CurrentTime)
	assert.Equal(t, 18.0, w.LowerTime)
	assert.Equal(t, 3, w.CurrentIndex)
	assert.Equal(t, 2, w.LowerIndex)
}

type fakeExtents struct {
	timestamps []float64
}

func (f fakeExtents) EventCount() int { return len(f.timestamps) }

func (f fakeExtents) MaxRelativeTime() float64 {
	if len(f.timestamps) == 0 {
		return 0
	}
	return f.timestamps[len(f.timestamps)-1]
}

func (f fakeExtents) IndexAtRelativeTime(t float64) int {
	for i, ts := range f.timestamps {
		if ts >= t {
			return i
		}
	}
	return -1
}

func (f fakeExtents) RelativeTimeAt(i int) float64 { return f.timestamps[i] }
