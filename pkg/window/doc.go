// Package window computes the active viewing window over an event stream.
//
// A Controller reads playback state from a paramstore.Store, applies one of
// six rules selected by domain (event index or time) and mode (paused,
// playing, latest), and publishes the resulting bounds back to the store.
// Whichever domain is active, the other domain's bounds are derived as well
// so index-based slicing always has a range to use.
//
// Update is a synchronous function of the playback state and the stream's
// extents. Callers pass an *eventstream.View so that extents, lookups and
// the subsequent slice all observe one snapshot.
package window
