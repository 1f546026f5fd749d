// Package paramstore is a thread-safe map from string keys to scalar values.
// It carries playback settings from the UI side to the window controller and
// carries computed window bounds back.
//
// Values are a closed tagged variant (int, float, bool, string). Typed access
// goes through the generic Get, which reports a missing key as
// errors.ErrKeyNotFound and a kind that does not match the requested type as
// errors.ErrTypeMismatch. Both are classified invalid: they signal a wiring
// bug, not a data condition.
//
//	store := paramstore.New()
//	paramstore.Set(store, "playback.index.step", int64(5))
//	step, err := paramstore.Get[int64](store, "playback.index.step")
package paramstore
