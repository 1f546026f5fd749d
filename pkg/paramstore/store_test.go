package paramstore

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/c360/eventscope/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet_RoundTrip(t *testing.T) {
	s := New()
	Set(s, "i", 42)
	Set(s, "i64", int64(-7))
	Set(s, "f", 2.5)
	Set(s, "b", true)
	Set(s, "s", "latest")

	i, err := Get[int](s, "i")
	require.NoError(t, err)
	assert.Equal(t, 42, i)

	// int and int64 share a kind
	i64, err := Get[int64](s, "i")
	require.NoError(t, err)
	assert.Equal(t, int64(42), i64)

	f, err := Get[float64](s, "f")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	b, err := Get[bool](s, "b")
	require.NoError(t, err)
	assert.True(t, b)

	str, err := Get[string](s, "s")
	require.NoError(t, err)
	assert.Equal(t, "latest", str)
}

func TestGet_KeyNotFound(t *testing.T) {
	s := New()
	_, err := Get[int64](s, "playback.mode")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), `"playback.mode"`)
}

func TestGet_TypeMismatch(t *testing.T) {
	s := New()
	Set(s, "playback.index.step", int64(5))

	_, err := Get[float64](s, "playback.index.step")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "as float (stored int)")
}

func TestSet_ReplacesKind(t *testing.T) {
	s := New()
	Set(s, "k", 1)
	Set(s, "k", "one")
	v, ok := s.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, KindString, v.Kind())
}

func TestExistsAndGetOr(t *testing.T) {
	s := New()
	assert.False(t, s.Exists("x"))
	assert.Equal(t, 3.0, GetOr(s, "x", 3.0))

	Set(s, "x", 1.5)
	assert.True(t, s.Exists("x"))
	assert.Equal(t, 1.5, GetOr(s, "x", 3.0))
	assert.Equal(t, "d", GetOr(s, "x", "d"), "mismatched kind falls back")
}

func TestSetIfAbsent(t *testing.T) {
	s := New()
	assert.True(t, SetIfAbsent(s, "k", int64(1)))
	assert.False(t, SetIfAbsent(s, "k", int64(2)))
	assert.Equal(t, int64(1), GetOr(s, "k", int64(0)))
}

func TestKeysAndSnapshot(t *testing.T) {
	s := New()
	Set(s, "b", 1)
	Set(s, "a", true)

	assert.Equal(t, []string{"a", "b"}, s.Keys())

	snap := s.Snapshot()
	Set(s, "c", "later")
	assert.Len(t, snap, 2)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":true,"b":1}`, string(data))
}

func TestWatch(t *testing.T) {
	s := New()
	ch := make(chan string, 4)
	s.Watch(ch)

	Set(s, "k", 1)
	Set(s, "k", 1) // unchanged
	Set(s, "k", 2)

	assert.Equal(t, "k", <-ch)
	assert.Equal(t, "k", <-ch)
	assert.Len(t, ch, 0)
}

func TestParseAs(t *testing.T) {
	v, err := ParseAs(KindInt, json.RawMessage(`5.0`))
	require.NoError(t, err)
	assert.Equal(t, Int(5), v)

	_, err = ParseAs(KindInt, json.RawMessage(`5.5`))
	assert.Error(t, err)

	for _, raw := range []string{`1e19`, `-1e19`, `9223372036854775808`} {
		_, err = ParseAs(KindInt, json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
	v, err = ParseAs(KindInt, json.RawMessage(`-9223372036854775808`))
	require.NoError(t, err)
	assert.Equal(t, Int(math.MinInt64), v)

	v, err = ParseAs(KindFloat, json.RawMessage(`12`))
	require.NoError(t, err)
	assert.Equal(t, Float(12), v)

	v, err = ParseAs(KindString, json.RawMessage(`"paused"`))
	require.NoError(t, err)
	assert.Equal(t, String("paused"), v)

	_, err = ParseAs(KindBool, json.RawMessage(`"yes"`))
	assert.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				Set(s, "counter", int64(i))
				_, _ = Get[int64](s, "counter")
				_ = s.Exists("counter")
			}
		}(w)
	}
	wg.Wait()
	assert.True(t, s.Exists("counter"))
}
