package eventstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newInt64Series(capacity int) *series[int64] {
	return newSeries(capacity, DefaultHighWatermark, DefaultLowWatermark, func(v *int64) int64 { return *v })
}

func TestWatermarks(t *testing.T) {
	tests := []struct {
		capacity  int
		high, low float64
		wantHigh  int
		wantLow   int
	}{
		{100, 0.9, 0.5, 90, 50},
		{10, 0.9, 0.5, 9, 5},
		{1, 0.9, 0.5, 1, 0},
		{10, 1, 0.99, 10, 9},
		{3, 0.5, 0.4, 2, 1},
	}
	for _, tt := range tests {
		high, low := watermarks(tt.capacity, tt.high, tt.low)
		assert.Equal(t, tt.wantHigh, high, "capacity %d high", tt.capacity)
		assert.Equal(t, tt.wantLow, low, "capacity %d low", tt.capacity)
	}
}

func TestSeries_LowerAndUpperBound(t *testing.T) {
	s := newInt64Series(100)
	for _, v := range []int64{1, 3, 3, 7} {
		s.insert(v, ResetClear, 0)
	}
	assert.Equal(t, 0, s.lowerBound(0))
	assert.Equal(t, 1, s.lowerBound(3))
	assert.Equal(t, 3, s.upperBound(3))
	assert.Equal(t, 4, s.lowerBound(8))
}

func TestSeries_HeadReorder(t *testing.T) {
	s := newInt64Series(100)
	s.headReorder = true
	s.insert(10, ResetReorder, 20)
	s.insert(20, ResetReorder, 20)
	assert.Equal(t, reordered, s.insert(5, ResetReorder, 20))
	assert.Equal(t, []int64{5, 10, 20}, s.items)
}

func TestSeries_EvictFrontReleasesTail(t *testing.T) {
	s := newInt64Series(100)
	for v := int64(0); v < 6; v++ {
		s.insert(v, ResetClear, 0)
	}
	s.evictFront(4)
	assert.Equal(t, []int64{4, 5}, s.items)
	assert.Equal(t, []int64{4, 5, 0, 0, 0, 0}, s.items[:6])

	s.evictFront(10)
	assert.Zero(t, s.len())
}
