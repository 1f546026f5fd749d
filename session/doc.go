// Package session owns one viewing session: the event stream for the active
// source, the parameter store shared with clients, and the window controller
// that runs over both.
//
// Each Tick takes the stream lock once, updates the window, copies the events
// and frame metadata inside it into a Snapshot, and releases the lock. Run
// drives Tick on an interval and hands every Snapshot to the configured sinks.
//
// Selecting a new source clears the stream and starts a new session id, so
// clients can tell samples of the old source from the new one.
package session
