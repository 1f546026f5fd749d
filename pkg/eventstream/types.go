package eventstream

import (
	"fmt"
	"image"
	"strings"
)

// NotFound is returned by index lookups that match no stored sample.
const NotFound = -1

// Event is a single polarity change at one pixel.
type Event struct {
	X         int32 `json:"x"`
	Y         int32 `json:"y"`
	Timestamp int64 `json:"t"`
	Polarity  uint8 `json:"p"`
}

// Frame is one intensity image read out by the sensor.
type Frame struct {
	Image     image.Image
	Timestamp int64
}

// TimedFrame is an exported frame with its timestamp converted to float64.
type TimedFrame struct {
	Image     image.Image
	Timestamp float64
}

// Inserter is the producer side of a stream.
type Inserter interface {
	InsertEvent(e Event)
	InsertFrame(f Frame)
}

// ResetPolicy decides what happens to a sample older than the newest stored one.
type ResetPolicy int

const (
	// ResetClear empties the sub-stream and keeps only the new sample.
	ResetClear ResetPolicy = iota
	// ResetDrop discards the new sample.
	ResetDrop
	// ResetReorder inserts small regressions in order and clears on large ones.
	ResetReorder
)

// String returns the configuration name of the policy.
func (p ResetPolicy) String() string {
	switch p {
	case ResetClear:
		return "clear"
	case ResetDrop:
		return "drop"
	case ResetReorder:
		return "reorder"
	default:
		return "unknown"
	}
}

// ParseResetPolicy maps a configuration name to a ResetPolicy.
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clear":
		return ResetClear, nil
	case "drop":
		return ResetDrop, nil
	case "reorder":
		return ResetReorder, nil
	default:
		return ResetClear, fmt.Errorf("unknown reset policy %q", s)
	}
}
