package paramstore

import (
	"fmt"
	"slices"
	"sync"

	"github.com/c360/eventscope/errors"
)

// Scalar lists the Go types Get and Set accept.
type Scalar interface {
	int | int64 | float64 | bool | string
}

// Store is a concurrent key/value map of Values.
type Store struct {
	mu       sync.RWMutex
	values   map[string]Value
	watchers []chan<- string
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]Value)}
}

// Exists reports whether key holds a value.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Lookup returns the raw Value for key.
func (s *Store) Lookup(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Put stores v under key, replacing any previous value of any kind.
func (s *Store) Put(key string, v Value) {
	s.mu.Lock()
	prev, existed := s.values[key]
	s.values[key] = v
	changed := !existed || prev != v
	watchers := s.watchers
	s.mu.Unlock()

	if changed {
		notify(watchers, key)
	}
}

// PutIfAbsent stores v only when key is unset and reports whether it did.
func (s *Store) PutIfAbsent(key string, v Value) bool {
	s.mu.Lock()
	if _, ok := s.values[key]; ok {
		s.mu.Unlock()
		return false
	}
	s.values[key] = v
	watchers := s.watchers
	s.mu.Unlock()

	notify(watchers, key)
	return true
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Snapshot copies every entry.
func (s *Store) Snapshot() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Watch registers ch to receive the key of every changed entry. Sends never
// block; a full channel misses notifications.
func (s *Store) Watch(ch chan<- string) {
	s.mu.Lock()
	s.watchers = append(slices.Clip(s.watchers), ch)
	s.mu.Unlock()
}

func notify(watchers []chan<- string, key string) {
	for _, ch := range watchers {
		select {
		case ch <- key:
		default:
		}
	}
}

// Get returns the value for key as T.
func Get[T Scalar](s *Store, key string) (T, error) {
	var zero T
	v, ok := s.Lookup(key)
	if !ok {
		return zero, errors.WrapInvalid(errors.ErrKeyNotFound, "ParamStore", "Get",
			fmt.Sprintf("lookup %q", key))
	}
	out, ok := as[T](v)
	if !ok {
		return zero, errors.WrapInvalid(errors.ErrTypeMismatch, "ParamStore", "Get",
			fmt.Sprintf("read %q as %s (stored %s)", key, KindOf[T](), v.Kind()))
	}
	return out, nil
}

// GetOr returns the value for key as T, or def on any error.
func GetOr[T Scalar](s *Store, key string, def T) T {
	v, err := Get[T](s, key)
	if err != nil {
		return def
	}
	return v
}

// Set stores x under key.
func Set[T Scalar](s *Store, key string, x T) {
	s.Put(key, ValueOf(x))
}

// SetIfAbsent stores x only when key is unset.
func SetIfAbsent[T Scalar](s *Store, key string, x T) bool {
	return s.PutIfAbsent(key, ValueOf(x))
}

// ValueOf wraps x in a Value.
func ValueOf[T Scalar](x T) Value {
	switch x := any(x).(type) {
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float64:
		return Float(x)
	case bool:
		return Bool(x)
	case string:
		return String(x)
	}
	return Value{}
}

// KindOf returns the Kind that T reads from and writes to.
func KindOf[T Scalar]() Kind {
	var zero T
	return ValueOf(zero).Kind()
}

func as[T Scalar](v Value) (T, bool) {
	var out T
	if v.kind != KindOf[T]() {
		return out, false
	}
	switch p := any(&out).(type) {
	case *int:
		*p = int(v.i)
	case *int64:
		*p = v.i
	case *float64:
		*p = v.f
	case *bool:
		*p = v.b
	case *string:
		*p = v.s
	}
	return out, true
}
