// Package pbcontext implements the immutable, ordered string-to-Value
// mapping that carries configuration and state through every layer of the
// engine: the playbook loader, the step runner, the built-in actions, and
// the infrastructure backends all exchange data exclusively as a Context.
package pbcontext

import "fmt"

// Kind tags the variant a Value currently holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindReal
	KindBoolean
	KindArray
	KindContext
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindString:
		return "String"
	case KindInteger:
		return "Integer"
	case KindReal:
		return "Real"
	case KindBoolean:
		return "Boolean"
	case KindArray:
		return "Array"
	case KindContext:
		return "Context"
	default:
		return "Unknown"
	}
}

// Value is the tagged union of everything a Context key can be bound to:
// String, Integer, Real, Boolean, Null, Array of Value, or Context. Values
// are immutable once constructed.
type Value struct {
	kind Kind
	str  string
	i    int64
	real float64
	b    bool
	arr  []Value
	ctx  Context
}

// String constructs a String value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int constructs an Integer value.
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Real constructs a Real (floating point) value.
func Real(f float64) Value { return Value{kind: KindReal, real: f} }

// Bool constructs a Boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Null constructs the Null value.
func Null() Value { return Value{kind: KindNull} }

// Array constructs an Array value from a slice of Values. The slice is
// copied so the caller's backing array can be mutated freely afterwards.
func Array(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// Nested constructs a Context value (a sub-context embedded as a leaf).
func Nested(c Context) Value { return Value{kind: KindContext, ctx: c} }

// Kind reports which variant this Value holds.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string payload and whether the Value is a String.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInt returns the integer payload and whether the Value is an Integer.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// AsReal returns the float payload and whether the Value is a Real.
func (v Value) AsReal() (float64, bool) {
	if v.kind != KindReal {
		return 0, false
	}
	return v.real, true
}

// AsBool returns the bool payload and whether the Value is a Boolean.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.b, true
}

// AsArray returns the element slice and whether the Value is an Array. The
// returned slice is a copy; mutating it does not affect the Value.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	cp := make([]Value, len(v.arr))
	copy(cp, v.arr)
	return cp, true
}

// AsContext returns the nested Context and whether the Value is a Context.
func (v Value) AsContext() (Context, bool) {
	if v.kind != KindContext {
		return Context{}, false
	}
	return v.ctx, true
}

// Equal reports structural equality between two Values. Array order is
// significant; Context key order is not (per spec, ordering affects only
// display).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindInteger:
		return v.i == other.i
	case KindReal:
		return v.real == other.real
	case KindBoolean:
		return v.b == other.b
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindContext:
		return v.ctx.Equal(other.ctx)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%g", v.real)
	case KindBoolean:
		return fmt.Sprintf("%t", v.b)
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	case KindContext:
		return v.ctx.Display()
	default:
		return ""
	}
}
