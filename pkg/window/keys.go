package window

// Playback state read by the controller.
const (
	KeyDomain = "playback.domain"
	KeyMode   = "playback.mode"

	KeyIndexCurrent = "playback.index.current"
	KeyIndexStep    = "playback.index.step"
	KeyIndexWindow  = "playback.index.window"

	KeyTimeCurrent = "playback.time.current"
	KeyTimeStep    = "playback.time.step"
	KeyTimeWindow  = "playback.time.window"
)

// Window bounds published by the controller.
const (
	KeyWindowIndexMin     = "window.index.min"
	KeyWindowIndexMax     = "window.index.max"
	KeyWindowIndexLower   = "window.index.lower"
	KeyWindowIndexCurrent = "window.index.current"

	KeyWindowTimeMin     = "window.time.min"
	KeyWindowTimeMax     = "window.time.max"
	KeyWindowTimeLower   = "window.time.lower"
	KeyWindowTimeCurrent = "window.time.current"
)

// WritableKeys are the playback keys clients may change.
var WritableKeys = []string{
	KeyDomain, KeyMode,
	KeyIndexCurrent, KeyIndexStep, KeyIndexWindow,
	KeyTimeCurrent, KeyTimeStep, KeyTimeWindow,
}
