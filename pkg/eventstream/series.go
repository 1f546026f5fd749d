package eventstream

import (
	"math"
	"slices"
	"sort"
)

type insertOutcome int

const (
	appended insertOutcome = iota
	reordered
	wasReset
	dropped
)

// series is one timestamp-ordered sub-stream. It is not safe for concurrent
// use; Stream serialises access.
type series[T any] struct {
	items    []T
	stamp    func(*T) int64
	capacity int
	highMark int
	lowMark  int
	// headReorder permits ResetReorder to place a sample before the first element.
	headReorder bool
}

func newSeries[T any](capacity int, high, low float64, stamp func(*T) int64) *series[T] {
	highMark, lowMark := watermarks(capacity, high, low)
	return &series[T]{
		stamp:    stamp,
		capacity: capacity,
		highMark: highMark,
		lowMark:  lowMark,
	}
}

// watermarks converts fractional watermarks into element counts with
// 1 <= highMark <= capacity and 0 <= lowMark < highMark.
func watermarks(capacity int, high, low float64) (int, int) {
	const eps = 1e-9
	highMark := int(math.Ceil(high*float64(capacity) - eps))
	if highMark > capacity {
		highMark = capacity
	}
	if highMark < 1 {
		highMark = 1
	}
	lowMark := int(math.Floor(low*float64(capacity) + eps))
	if lowMark >= highMark {
		lowMark = highMark - 1
	}
	if lowMark < 0 {
		lowMark = 0
	}
	return highMark, lowMark
}

func (s *series[T]) len() int {
	return len(s.items)
}

func (s *series[T]) ts(i int) int64 {
	return s.stamp(&s.items[i])
}

func (s *series[T]) first() (int64, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	return s.ts(0), true
}

func (s *series[T]) last() (int64, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	return s.ts(len(s.items) - 1), true
}

// insert places item according to policy and reports what happened. On a
// reset the sub-stream holds only item afterwards.
func (s *series[T]) insert(item T, policy ResetPolicy, tolerance int64) insertOutcome {
	n := len(s.items)
	ts := s.stamp(&item)
	if n == 0 || ts >= s.ts(n-1) {
		s.items = append(s.items, item)
		return appended
	}

	switch policy {
	case ResetDrop:
		return dropped
	case ResetReorder:
		if s.ts(n-1)-ts <= tolerance {
			// upper bound keeps equal timestamps in arrival order
			i := sort.Search(n, func(i int) bool { return s.ts(i) > ts })
			if i > 0 || s.headReorder {
				s.items = slices.Insert(s.items, i, item)
				return reordered
			}
		}
	}

	s.clear()
	s.items = append(s.items, item)
	return wasReset
}

// lowerBound returns the index of the first element with timestamp >= ts,
// or len when there is none.
func (s *series[T]) lowerBound(ts int64) int {
	return sort.Search(len(s.items), func(i int) bool { return s.ts(i) >= ts })
}

// upperBound returns the index of the first element with timestamp > ts.
func (s *series[T]) upperBound(ts int64) int {
	return sort.Search(len(s.items), func(i int) bool { return s.ts(i) > ts })
}

// cull removes the oldest elements down to the low watermark once the high
// watermark is reached. It returns the number removed.
func (s *series[T]) cull() int {
	if len(s.items) < s.highMark {
		return 0
	}
	k := len(s.items) - s.lowMark
	s.evictFront(k)
	return k
}

// evictFront removes the first k elements in place.
func (s *series[T]) evictFront(k int) {
	if k <= 0 {
		return
	}
	if k >= len(s.items) {
		s.clear()
		return
	}
	n := copy(s.items, s.items[k:])
	// release references held in the abandoned tail
	clear(s.items[n:])
	s.items = s.items[:n]
}

func (s *series[T]) clear() {
	clear(s.items)
	s.items = s.items[:0]
}
