// Package eventstream stores the samples an event camera produces: discrete
// polarity events and periodic intensity frames. Both sub-streams are kept in
// ascending timestamp order, bounded by an explicit capacity, and reset when
// the source's clock regresses.
//
// # Ordering and resets
//
// Sources are near-sorted, so an insert normally lands at the tail. A sample
// whose timestamp is below the newest stored one is treated according to the
// stream's ResetPolicy:
//
//   - ResetClear (default): the device restarted or its clock wrapped. The
//     sub-stream is emptied and the sample becomes its only element. An event
//     reset also empties the frame sub-stream, whose timestamps depend on the
//     event anchor.
//   - ResetDrop: the sample is discarded.
//   - ResetReorder: a regression no larger than the reorder tolerance is
//     inserted at its sorted position; anything larger resets as ResetClear.
//
// Resets are not errors. They are visible through the sub-stream size, the
// Statistics counters, a WARN log line and the resets_total metric.
//
// # Anchoring
//
// Frames are stored relative to the earliest stored event (the anchor), which
// puts events and frames on one time base. A frame inserted while no event is
// stored is dropped. When culling moves the anchor forward, stored frame
// timestamps are rebased onto the new anchor and frames older than it are
// evicted.
//
// # Capacity
//
// Each sub-stream has a configured capacity. Once its size reaches the high
// watermark (default 90% of capacity) the oldest samples are removed in one
// bulk operation until the size is at the low watermark (default 50%), which
// keeps eviction off the per-insert path.
//
// # Locking
//
// One mutex covers both sub-streams. InsertEvent, InsertFrame and Clear take
// it internally. Readers take it explicitly with Acquire and hold it across
// every read that must observe one snapshot:
//
//	v := stream.Acquire()
//	n := v.EventCount()
//	i := v.IndexAtRelativeTime(t)
//	events := v.SliceEvents(i, n-1)
//	render(events) // events is only valid until Release
//	v.Release()
//
// Timestamps are int64 in the source's clock unit, microseconds for the
// cameras this package was built for.
package eventstream
