package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/input/natsinput"
	"github.com/c360/eventscope/input/synthetic"
	"github.com/c360/eventscope/output/websocket"
	"github.com/c360/eventscope/pkg/eventstream"
	"github.com/c360/eventscope/pkg/window"
)

// Input source names.
const (
	SourceSynthetic = "synthetic"
	SourceNATS      = "nats"
)

// Config is the complete application configuration.
type Config struct {
	Stream   StreamConfig   `json:"stream"`
	Playback PlaybackConfig `json:"playback"`
	Session  SessionConfig  `json:"session"`
	Inputs   InputsConfig   `json:"inputs"`
	Outputs  OutputsConfig  `json:"outputs"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// StreamConfig sizes the event stream buffer.
type StreamConfig struct {
	EventCapacity    int     `json:"event_capacity"`
	FrameCapacity    int     `json:"frame_capacity"`
	HighWatermark    float64 `json:"high_watermark"`
	LowWatermark     float64 `json:"low_watermark"`
	ResetPolicy      string  `json:"reset_policy"`
	ReorderTolerance int64   `json:"reorder_tolerance"`
}

// PlaybackConfig holds the initial playback state written to the parameter
// store, plus the controller's strictness.
type PlaybackConfig struct {
	Domain      string  `json:"domain"`
	Mode        string  `json:"mode"`
	IndexStep   int64   `json:"index_step"`
	IndexWindow int64   `json:"index_window"`
	TimeStep    float64 `json:"time_step"`
	TimeWindow  float64 `json:"time_window"`
	Strict      bool    `json:"strict"`
}

// SessionConfig controls the tick loop.
type SessionConfig struct {
	TickInterval time.Duration `json:"tick_interval"`
	MaxEvents    int           `json:"max_events"`
}

// InputsConfig selects and configures the producer.
type InputsConfig struct {
	Source    string           `json:"source"`
	Synthetic synthetic.Config `json:"synthetic"`
	NATS      NATSInputConfig  `json:"nats"`
}

// NATSInputConfig configures the live device bridge.
type NATSInputConfig struct {
	URL           string        `json:"url"`
	Subject       string        `json:"subject"`
	Name          string        `json:"name,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
	QueueSize     int           `json:"queue_size"`
}

// OutputsConfig configures consumers.
type OutputsConfig struct {
	WebSocket WebSocketConfig `json:"websocket"`
}

// WebSocketConfig is the renderer feed; disabled outputs are not started.
type WebSocketConfig struct {
	Enabled bool `json:"enabled"`
	websocket.Config
}

// MarshalJSON flattens the embedded websocket settings next to enabled.
func (w WebSocketConfig) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(w.Config)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(inner, &m); err != nil {
		return nil, err
	}
	m["enabled"] = w.Enabled
	return json.Marshal(m)
}

// UnmarshalJSON reads enabled and the embedded websocket settings from one
// object.
func (w *WebSocketConfig) UnmarshalJSON(data []byte) error {
	var head struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &w.Config); err != nil {
		return err
	}
	w.Enabled = head.Enabled
	return nil
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	st := window.DefaultState()
	return &Config{
		Stream: StreamConfig{
			EventCapacity: eventstream.DefaultEventCapacity,
			FrameCapacity: eventstream.DefaultFrameCapacity,
			HighWatermark: eventstream.DefaultHighWatermark,
			LowWatermark:  eventstream.DefaultLowWatermark,
			ResetPolicy:   eventstream.ResetClear.String(),
		},
		Playback: PlaybackConfig{
			Domain:      st.Domain.String(),
			Mode:        st.Mode.String(),
			IndexStep:   st.IndexStep,
			IndexWindow: st.IndexWindow,
			TimeStep:    st.TimeStep,
			TimeWindow:  st.TimeWindow,
		},
		Session: SessionConfig{
			TickInterval: 33 * time.Millisecond,
			MaxEvents:    50_000,
		},
		Inputs: InputsConfig{
			Source:    SourceSynthetic,
			Synthetic: synthetic.DefaultConfig(),
			NATS: NATSInputConfig{
				URL:           "nats://localhost:4222",
				Subject:       "eventscope.camera",
				MaxReconnects: -1,
				ReconnectWait: 2 * time.Second,
			},
		},
		Outputs: OutputsConfig{
			WebSocket: WebSocketConfig{Enabled: true, Config: websocket.DefaultConfig()},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration as a whole.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", fmt.Sprintf(format, args...))
	}

	s := c.Stream
	if s.EventCapacity <= 0 || s.FrameCapacity <= 0 {
		return invalid("stream capacities must be positive")
	}
	if !(s.LowWatermark > 0 && s.LowWatermark < s.HighWatermark && s.HighWatermark <= 1) {
		return invalid("watermarks must satisfy 0 < low (%g) < high (%g) <= 1", s.LowWatermark, s.HighWatermark)
	}
	if _, err := eventstream.ParseResetPolicy(s.ResetPolicy); err != nil {
		return invalid("stream.reset_policy: %v", err)
	}
	if s.ReorderTolerance < 0 {
		return invalid("stream.reorder_tolerance must not be negative")
	}

	p := c.Playback
	if _, err := window.ParseDomain(p.Domain); err != nil {
		return invalid("playback.domain: %v", err)
	}
	if _, err := window.ParseMode(p.Mode); err != nil {
		return invalid("playback.mode: %v", err)
	}
	if p.IndexStep < 0 || p.IndexWindow < 0 || p.TimeStep < 0 || p.TimeWindow < 0 {
		return invalid("playback steps and windows must not be negative")
	}

	if c.Session.TickInterval <= 0 {
		return invalid("session.tick_interval must be positive")
	}
	if c.Session.MaxEvents <= 0 {
		return invalid("session.max_events must be positive")
	}

	switch c.Inputs.Source {
	case SourceSynthetic:
		if err := c.Inputs.Synthetic.Validate(); err != nil {
			return err
		}
	case SourceNATS:
		if c.Inputs.NATS.URL == "" || c.Inputs.NATS.Subject == "" {
			return invalid("inputs.nats requires url and subject")
		}
		if c.Inputs.NATS.QueueSize <= 0 {
			return invalid("inputs.nats.queue_size must be positive")
		}
	default:
		return invalid("unknown input source %q", c.Inputs.Source)
	}

	if c.Outputs.WebSocket.Enabled {
		if err := c.Outputs.WebSocket.Validate(); err != nil {
			return err
		}
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return invalid("metrics.port %d out of range", c.Metrics.Port)
	}
	return nil
}

// String renders the configuration as JSON with credentials redacted.
func (c *Config) String() string {
	redacted := *c
	if redacted.Inputs.NATS.Password != "" {
		redacted.Inputs.NATS.Password = "***"
	}
	if redacted.Inputs.NATS.Token != "" {
		redacted.Inputs.NATS.Token = "***"
	}
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
