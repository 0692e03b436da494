package core

import "fmt"

// ValueKind identifies which variant a Value holds.
type ValueKind int

const (
	// KindNull is SQL NULL.
	KindNull ValueKind = iota

	// KindInt is a 64-bit integer.
	KindInt

	// KindReal is a double.
	KindReal

	// KindText is a string.
	KindText
)

// Value is a bindable parameter: an integer, real, text or NULL.
// The zero Value is NULL.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Int wraps an integer.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Real wraps a double.
func Real(v float64) Value { return Value{kind: KindReal, f: v} }

// Text wraps a string.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// MaybeInt wraps an optional integer; nil binds NULL.
func MaybeInt(v *int64) Value {
	if v == nil {
		return Null()
	}
	return Int(*v)
}

// MaybeReal wraps an optional double; nil binds NULL.
func MaybeReal(v *float64) Value {
	if v == nil {
		return Null()
	}
	return Real(*v)
}

// MaybeText wraps an optional string; nil binds NULL.
func MaybeText(v *string) Value {
	if v == nil {
		return Null()
	}
	return Text(*v)
}

// Kind returns the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Interface returns v as a database/sql compatible argument.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindReal:
		return v.f
	case KindText:
		return v.s
	default:
		return nil
	}
}

// String formats v for logs.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%g", v.f)
	case KindText:
		return fmt.Sprintf("%q", v.s)
	default:
		return "NULL"
	}
}
