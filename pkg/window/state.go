package window

import (
	"fmt"
	"strings"
)

// Domain is the addressing space the user scrubs in.
type Domain int

const (
	DomainEventIndex Domain = iota
	DomainTime
)

func (d Domain) String() string {
	switch d {
	case DomainEventIndex:
		return "event_index"
	case DomainTime:
		return "time"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// ParseDomain accepts "event_index" (or "index") and "time".
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "event_index", "index":
		return DomainEventIndex, nil
	case "time":
		return DomainTime, nil
	default:
		return DomainEventIndex, fmt.Errorf("unknown domain %q", s)
	}
}

// MarshalText encodes the domain by name.
func (d Domain) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts the names ParseDomain does.
func (d *Domain) UnmarshalText(b []byte) error {
	v, err := ParseDomain(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Mode is the playback mode.
type Mode int

const (
	ModePaused Mode = iota
	ModePlaying
	ModeLatest
)

func (m Mode) String() string {
	switch m {
	case ModePaused:
		return "paused"
	case ModePlaying:
		return "playing"
	case ModeLatest:
		return "latest"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "paused", "playing" and "latest".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paused":
		return ModePaused, nil
	case "playing":
		return ModePlaying, nil
	case "latest":
		return ModeLatest, nil
	default:
		return ModePaused, fmt.Errorf("unknown mode %q", s)
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText accepts the names ParseMode does.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// State is one tick's playback state as read from the store.
type State struct {
	Domain Domain
	Mode   Mode

	IndexCurrent int64
	IndexStep    int64
	IndexWindow  int64

	TimeCurrent float64
	TimeStep    float64
	TimeWindow  float64
}

// DefaultState is what Seed writes for absent keys.
func DefaultState() State {
	return State{
		Domain:      DomainEventIndex,
		Mode:        ModeLatest,
		IndexStep:   1000,
		IndexWindow: 10000,
		TimeStep:    10000,
		TimeWindow:  50000,
	}
}

// Window is the result of one tick. Both domains are always populated.
type Window struct {
	Domain Domain `json:"domain"`
	Mode   Mode   `json:"mode"`
	Size   int    `json:"size"`

	MaxIndex     int `json:"max_index"`
	LowerIndex   int `json:"lower_index"`
	CurrentIndex int `json:"current_index"`

	MaxTime     float64 `json:"max_time"`
	LowerTime   float64 `json:"lower_time"`
	CurrentTime float64 `json:"current_time"`
}

// Empty reports whether the window covers no events.
func (w Window) Empty() bool {
	return w.Size == 0
}
