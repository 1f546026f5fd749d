package window

import (
	"fmt"
	"log/slog"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/pkg/paramstore"
)

// Extents is the read side of a locked stream that the controller needs.
// *eventstream.View implements it.
type Extents interface {
	EventCount() int
	MaxRelativeTime() float64
	IndexAtRelativeTime(t float64) int
	RelativeTimeAt(i int) float64
}

// Controller turns playback state and stream extents into a Window.
type Controller struct {
	store    *paramstore.Store
	strict   bool
	defaults State
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithStrict makes store contract violations fail Update instead of falling
// back to defaults.
func WithStrict(strict bool) Option {
	return func(c *Controller) {
		c.strict = strict
	}
}

// WithDefaults replaces the values used by Seed and by lenient fallback.
func WithDefaults(s State) Option {
	return func(c *Controller) {
		c.defaults = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a controller bound to store.
func NewController(store *paramstore.Store, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		defaults: DefaultState(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "window")
	return c
}

// Seed writes default playback state for every key not yet present.
func (c *Controller) Seed() {
	d := c.defaults
	paramstore.SetIfAbsent(c.store, KeyDomain, d.Domain.String())
	paramstore.SetIfAbsent(c.store, KeyMode, d.Mode.String())
	paramstore.SetIfAbsent(c.store, KeyIndexCurrent, d.IndexCurrent)
	paramstore.SetIfAbsent(c.store, KeyIndexStep, d.IndexStep)
	paramstore.SetIfAbsent(c.store, KeyIndexWindow, d.IndexWindow)
	paramstore.SetIfAbsent(c.store, KeyTimeCurrent, d.TimeCurrent)
	paramstore.SetIfAbsent(c.store, KeyTimeStep, d.TimeStep)
	paramstore.SetIfAbsent(c.store, KeyTimeWindow, d.TimeWindow)
}

// Update runs one tick: read state, compute the window, publish it.
func (c *Controller) Update(ext Extents) (Window, error) {
	st, err := c.readState()
	if err != nil {
		return Window{}, err
	}

	w := Compute(st, ext)
	c.publish(w)
	return w, nil
}

// Compute applies the rule for st.Domain and st.Mode. It never fails: every
// input is clamped and an empty stream yields an all-zero window.
func Compute(st State, ext Extents) Window {
	w := Window{Domain: st.Domain, Mode: st.Mode}

	size := ext.EventCount()
	if size <= 0 {
		return w
	}
	last := size - 1
	w.Size = size
	w.MaxIndex = last
	w.MaxTime = ext.MaxRelativeTime()

	switch st.Domain {
	case DomainTime:
		w.LowerTime, w.CurrentTime = timeRule(st, w.MaxTime)
		w.CurrentIndex = derivedIndex(ext, w.CurrentTime, last)
		w.LowerIndex = derivedIndex(ext, w.LowerTime, last)
	default:
		lower, current := indexRule(st, int64(last))
		w.LowerIndex, w.CurrentIndex = int(lower), int(current)
		w.LowerTime = ext.RelativeTimeAt(w.LowerIndex)
		w.CurrentTime = ext.RelativeTimeAt(w.CurrentIndex)
	}
	return w
}

func indexRule(st State, last int64) (lower, current int64) {
	step := clamp(st.IndexStep, 0, last)
	window := clamp(st.IndexWindow, 0, last)

	switch st.Mode {
	case ModePlaying:
		current = st.IndexCurrent
		if current > last {
			current = last
		}
		current = clamp(current+step, 0, last)
	case ModeLatest:
		current = last
	default:
		current = clamp(st.IndexCurrent, 0, last)
	}
	return max(0, current-window), current
}

func timeRule(st State, maxTime float64) (lower, current float64) {
	const minTime = 0.0
	step := clamp(st.TimeStep, minTime, maxTime)
	window := clamp(st.TimeWindow, minTime, maxTime)

	switch st.Mode {
	case ModePlaying:
		current = clamp(clamp(st.TimeCurrent, minTime, maxTime)+step, minTime, maxTime)
	case ModeLatest:
		current = maxTime
	default:
		current = clamp(st.TimeCurrent, minTime, maxTime)
	}
	return max(minTime, current-window), current
}

// derivedIndex maps a relative time to the first event at or after it; a
// miss resolves to the last event.
func derivedIndex(ext Extents, t float64, last int) int {
	i := ext.IndexAtRelativeTime(t)
	if i < 0 || i > last {
		return last
	}
	return i
}

func clamp[T int64 | float64](v, lo, hi T) T {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

func (c *Controller) publish(w Window) {
	s := c.store
	paramstore.Set(s, KeyWindowIndexMin, int64(0))
	paramstore.Set(s, KeyWindowIndexMax, int64(w.MaxIndex))
	paramstore.Set(s, KeyWindowIndexLower, int64(w.LowerIndex))
	paramstore.Set(s, KeyWindowIndexCurrent, int64(w.CurrentIndex))

	paramstore.Set(s, KeyWindowTimeMin, 0.0)
	paramstore.Set(s, KeyWindowTimeMax, w.MaxTime)
	paramstore.Set(s, KeyWindowTimeLower, w.LowerTime)
	paramstore.Set(s, KeyWindowTimeCurrent, w.CurrentTime)

	// both cursors follow the active one so a domain switch resumes in place
	paramstore.Set(s, KeyIndexCurrent, int64(w.CurrentIndex))
	paramstore.Set(s, KeyTimeCurrent, w.CurrentTime)
}

func (c *Controller) readState() (State, error) {
	var st State
	var err error

	if st.Domain, err = readEnum(c, KeyDomain, c.defaults.Domain, ParseDomain); err != nil {
		return st, err
	}
	if st.Mode, err = readEnum(c, KeyMode, c.defaults.Mode, ParseMode); err != nil {
		return st, err
	}

	ints := []struct {
		key string
		dst *int64
		def int64
	}{
		{KeyIndexCurrent, &st.IndexCurrent, c.defaults.IndexCurrent},
		{KeyIndexStep, &st.IndexStep, c.defaults.IndexStep},
		{KeyIndexWindow, &st.IndexWindow, c.defaults.IndexWindow},
	}
	for _, f := range ints {
		if *f.dst, err = readKey(c, f.key, f.def); err != nil {
			return st, err
		}
	}

	floats := []struct {
		key string
		dst *float64
		def float64
	}{
		{KeyTimeCurrent, &st.TimeCurrent, c.defaults.TimeCurrent},
		{KeyTimeStep, &st.TimeStep, c.defaults.TimeStep},
		{KeyTimeWindow, &st.TimeWindow, c.defaults.TimeWindow},
	}
	for _, f := range floats {
		if *f.dst, err = readKey(c, f.key, f.def); err != nil {
			return st, err
		}
	}

	return st, nil
}

// readKey reads one typed key. In lenient mode a missing or mistyped key is
// logged, overwritten with def and def is returned.
func readKey[T paramstore.Scalar](c *Controller, key string, def T) (T, error) {
	v, err := paramstore.Get[T](c.store, key)
	if err == nil {
		return v, nil
	}
	if c.strict {
		return v, errors.Wrap(err, "WindowController", "Update", "read playback state")
	}
	c.logger.Warn("Playback key unusable, restoring default", "key", key, "default", def, "error", err)
	paramstore.Set(c.store, key, def)
	return def, nil
}

// readEnum reads a string key and parses it. An unparseable value is
// handled like a mistyped key.
func readEnum[E fmt.Stringer](c *Controller, key string, def E, parse func(string) (E, error)) (E, error) {
	raw, err := readKey(c, key, def.String())
	if err != nil {
		return def, err
	}
	v, perr := parse(raw)
	if perr == nil {
		return v, nil
	}
	if c.strict {
		return def, errors.WrapInvalid(errors.ErrInvalidData, "WindowController", "Update",
			fmt.Sprintf("parse %s=%q", key, raw))
	}
	c.logger.Warn("Playback key unusable, restoring default", "key", key, "default", def.String(), "error", perr)
	paramstore.Set(c.store, key, def.String())
	return def, nil
}
