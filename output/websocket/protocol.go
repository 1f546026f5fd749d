package websocket

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/pkg/paramstore"
	"github.com/c360/eventscope/pkg/window"
)

// Envelope types.
const (
	TypeWindow       = "window"
	TypeParams       = "params"
	TypeError        = "error"
	TypeControl      = "control"
	TypeSelectSource = "select_source"
)

// MessageEnvelope wraps every message in either direction.
type MessageEnvelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ControlPayload writes one playback key.
type ControlPayload struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// SelectSourcePayload asks the session to switch sources.
type SelectSourcePayload struct {
	Source string `json:"source"`
}

// ErrorPayload answers a rejected inbound message.
type ErrorPayload struct {
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}

// applyControl validates a control payload and writes it into the store.
// Domain and mode values are stored in canonical form.
func applyControl(store *paramstore.Store, p ControlPayload) error {
	if !slices.Contains(window.WritableKeys, p.Key) {
		return errors.WrapInvalid(errors.ErrInvalidData, "Output", "applyControl",
			fmt.Sprintf("key %q is not writable", p.Key))
	}
	current, ok := store.Lookup(p.Key)
	if !ok {
		return errors.WrapInvalid(errors.ErrKeyNotFound, "Output", "applyControl",
			fmt.Sprintf("lookup %q", p.Key))
	}

	v, err := paramstore.ParseAs(current.Kind(), p.Value)
	if err != nil {
		return errors.WrapInvalid(errors.ErrTypeMismatch, "Output", "applyControl",
			fmt.Sprintf("decode %q as %s: %v", p.Key, current.Kind(), err))
	}

	switch p.Key {
	case window.KeyDomain:
		d, err := window.ParseDomain(v.String())
		if err != nil {
			return errors.WrapInvalid(errors.ErrInvalidData, "Output", "applyControl", err.Error())
		}
		v = paramstore.String(d.String())
	case window.KeyMode:
		m, err := window.ParseMode(v.String())
		if err != nil {
			return errors.WrapInvalid(errors.ErrInvalidData, "Output", "applyControl", err.Error())
		}
		v = paramstore.String(m.String())
	default:
		if strings.HasSuffix(p.Key, ".step") || strings.HasSuffix(p.Key, ".window") {
			if negative(v) {
				return errors.WrapInvalid(errors.ErrInvalidData, "Output", "applyControl",
					fmt.Sprintf("%q must not be negative", p.Key))
			}
		}
	}

	store.Put(p.Key, v)
	return nil
}

func negative(v paramstore.Value) bool {
	switch x := v.Any().(type) {
	case int64:
		return x < 0
	case float64:
		return x < 0
	}
	return false
}

// playbackParams returns the playback.* entries of the store.
func playbackParams(store *paramstore.Store) map[string]paramstore.Value {
	all := store.Snapshot()
	out := make(map[string]paramstore.Value, len(window.WritableKeys))
	for k, v := range all {
		if strings.HasPrefix(k, "playback.") {
			out[k] = v
		}
	}
	return out
}
