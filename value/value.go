// Package value provides the tagged-variant runtime type that flows through
// the unpacker and packer engines.
//
// Both engines traffic exclusively in Value: the unpacker produces a tree of
// them, the packer consumes a flat sequence of them. Using one variant type
// instead of Go's native "any" keeps the engines free of per-call type
// switches on the caller's argument types. Callers build Values with the
// constructors below and unbox decoded ones with Native; Go-native
// arguments are not boxed automatically anywhere in the module.
package value

import "fmt"

// Kind tags which field of a Value is meaningful.
type Kind uint8

const (
	Int Kind = iota + 1
	Uint
	Float
	Bool
	Bytes
	Text
	Seq
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "Int"
	case Uint:
		return "Uint"
	case Float:
		return "Float"
	case Bool:
		return "Bool"
	case Bytes:
		return "Bytes"
	case Text:
		return "Text"
	case Seq:
		return "Seq"
	default:
		return "Unknown"
	}
}

// Value is a tagged union over the value types the format language can
// produce or consume: signed/unsigned integers, floats, booleans, raw
// bytes, text, and nested sequences (groups/iterators/top-level scopes).
type Value struct {
	kind  Kind
	i64   int64
	u64   uint64
	f64   float64
	b     bool
	bytes []byte
	text  string
	seq   []Value
}

// Int64 wraps a signed integer.
func Int64(v int64) Value { return Value{kind: Int, i64: v} }

// Uint64 wraps an unsigned integer.
func Uint64(v uint64) Value { return Value{kind: Uint, u64: v} }

// Float64 wraps a floating-point value.
func Float64(v float64) Value { return Value{kind: Float, f64: v} }

// Boolean wraps a boolean.
func Boolean(v bool) Value { return Value{kind: Bool, b: v} }

// BytesVal wraps a raw byte string.
func BytesVal(v []byte) Value { return Value{kind: Bytes, bytes: v} }

// TextVal wraps hex-encoded or UTF-8 text.
func TextVal(v string) Value { return Value{kind: Text, text: v} }

// SeqVal wraps a nested sequence of values (a group/iteration/scope).
func SeqVal(v []Value) Value { return Value{kind: Seq, seq: v} }

// Kind reports the tag of v.
func (v Value) Kind() Kind { return v.kind }

// Int returns the signed-integer payload and whether v is Kind Int.
func (v Value) Int() (int64, bool) { return v.i64, v.kind == Int }

// Uint returns the unsigned-integer payload and whether v is Kind Uint.
func (v Value) Uint() (uint64, bool) { return v.u64, v.kind == Uint }

// Float returns the float payload and whether v is Kind Float.
func (v Value) Float() (float64, bool) { return v.f64, v.kind == Float }

// Bool returns the boolean payload and whether v is Kind Bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

// Bytes returns the byte-string payload and whether v is Kind Bytes.
func (v Value) Bytes() ([]byte, bool) { return v.bytes, v.kind == Bytes }

// Text returns the text payload and whether v is Kind Text.
func (v Value) Text() (string, bool) { return v.text, v.kind == Text }

// Seq returns the nested sequence and whether v is Kind Seq.
func (v Value) Seq() ([]Value, bool) { return v.seq, v.kind == Seq }

// AsInt64 returns the value's numeric payload as an int64, for use by the
// reference resolver which only ever needs repeat counts out of decoded
// scalars. Bool counts as 0 or 1. It reports false for Float and for any
// non-numeric kind.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case Int:
		return v.i64, true
	case Uint:
		return int64(v.u64), true
	case Bool:
		if v.b {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}

// Native unboxes v into the closest Go-native representation, used by the
// root package when handing decoded trees back to callers.
func (v Value) Native() any {
	switch v.kind {
	case Int:
		return v.i64
	case Uint:
		return v.u64
	case Float:
		return v.f64
	case Bool:
		return v.b
	case Bytes:
		return v.bytes
	case Text:
		return v.text
	case Seq:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Native()
		}

		return out
	default:
		return nil
	}
}

// String implements fmt.Stringer for debugging and error messages.
func (v Value) String() string {
	switch v.kind {
	case Int:
		return fmt.Sprintf("%d", v.i64)
	case Uint:
		return fmt.Sprintf("%d", v.u64)
	case Float:
		return fmt.Sprintf("%g", v.f64)
	case Bool:
		return fmt.Sprintf("%t", v.b)
	case Bytes:
		return fmt.Sprintf("%x", v.bytes)
	case Text:
		return fmt.Sprintf("%q", v.text)
	case Seq:
		return fmt.Sprintf("%v", v.seq)
	default:
		return "<invalid>"
	}
}
