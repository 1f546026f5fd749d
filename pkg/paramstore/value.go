package paramstore

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind identifies which scalar a Value holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is one scalar. The zero Value is invalid.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

// Int makes an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float makes a floating point Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool makes a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// String makes a string Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind reports which scalar the Value holds.
func (v Value) Kind() Kind { return v.kind }

// Any returns the held scalar as int64, float64, bool or string.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindString:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	return fmt.Sprint(v.Any())
}

// MarshalJSON encodes the bare scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Any())
}

// ParseAs decodes raw JSON into a Value of kind k. Integral floats are
// accepted for KindInt so that UI clients sending 5.0 still work.
func ParseAs(k Kind, raw json.RawMessage) (Value, error) {
	switch k {
	case KindInt:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, err
		}
		if math.IsNaN(f) || f != math.Trunc(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("%s is not an integer", raw)
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return Value{}, fmt.Errorf("%s is out of int64 range", raw)
		}
		return Int(int64(f)), nil
	case KindFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	default:
		return Value{}, fmt.Errorf("cannot parse into %s value", k)
	}
}
