// Package token implements the format-string tokenizer: it turns a format
// string into an ordered token tree plus the byte-order marker it declares,
// per the format grammar (whitespace-insignificant scalar/special
// characters, optional leading repeat counts, group/iterator nesting,
// alignment markers, and reference-driven repeats).
//
// The tokenizer performs no semantic validation beyond syntax; reference
// range/safety checking and size determinacy are the analyzer package's
// job, so the tree it emits is still "raw" — elements carry no element
// index yet.
package token

// Kind identifies what a Node represents: a fixed-width scalar, a
// variable-length construct, a structural control token, or a scope
// (group/iterator).
type Kind uint8

const (
	KindInt8 Kind = iota + 1
	KindUint8
	KindInt16
	KindUint16
	KindInt24
	KindUint24
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat16
	KindFloat32
	KindFloat64
	KindFloat128
	KindBool
	KindChar       // 'c': k repeats -> k single-byte values
	KindByteString // 's': k repeat -> one byte string of length k
	KindHexString  // 'X': k repeat -> one hex-encoded string of length 2k chars
	KindPad        // 'x': skip/write one byte, no value
	KindNullString // 'n': read/write until a 0x00 terminator
	KindRest       // '$': consume/emit all remaining bytes
	KindAlign      // 'a': advance to the next multiple of N
	KindAlignBase  // '|': reset the scope's alignment origin
	KindGroup      // '(...)'
	KindIter       // '[...]'
	KindUnbounded  // '{...}'
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "Int8"
	case KindUint8:
		return "Uint8"
	case KindInt16:
		return "Int16"
	case KindUint16:
		return "Uint16"
	case KindInt24:
		return "Int24"
	case KindUint24:
		return "Uint24"
	case KindInt32:
		return "Int32"
	case KindUint32:
		return "Uint32"
	case KindInt64:
		return "Int64"
	case KindUint64:
		return "Uint64"
	case KindFloat16:
		return "Float16"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindFloat128:
		return "Float128"
	case KindBool:
		return "Bool"
	case KindChar:
		return "Char"
	case KindByteString:
		return "ByteString"
	case KindHexString:
		return "HexString"
	case KindPad:
		return "Pad"
	case KindNullString:
		return "NullString"
	case KindRest:
		return "Rest"
	case KindAlign:
		return "Align"
	case KindAlignBase:
		return "AlignBase"
	case KindGroup:
		return "Group"
	case KindIter:
		return "Iter"
	case KindUnbounded:
		return "Unbounded"
	default:
		return "Unknown"
	}
}

// IsScope reports whether k introduces a child scope with its own children.
func (k Kind) IsScope() bool {
	return k == KindGroup || k == KindIter || k == KindUnbounded
}

// IsNumericScalar reports whether k is an integer or boolean scalar, i.e.
// a valid target for an absolute/relative repeat reference. Float kinds
// are excluded: their decoded values cannot serve as repeat counts.
func (k Kind) IsNumericScalar() bool {
	switch k {
	case KindInt8, KindUint8, KindInt16, KindUint16, KindInt24, KindUint24,
		KindInt32, KindUint32, KindInt64, KindUint64, KindBool:
		return true
	default:
		return false
	}
}

// PerRepeatValue reports whether a repeat count on k multiplies the
// number of produced values (true: each repetition is its own
// addressable element, e.g. "4B" -> four uint8 values) rather than
// combining into one value regardless of repeat (false: "4s" -> one
// 4-byte string; a group/iterator always collapses to one nested value
// no matter its repeat count).
func (k Kind) PerRepeatValue() bool {
	switch k {
	case KindByteString, KindHexString, KindNullString, KindRest,
		KindAlign, KindAlignBase, KindPad,
		KindGroup, KindIter, KindUnbounded:
		return false
	default:
		return true
	}
}

// FixedWidth returns the encoded byte width of a single value of k, or 0
// if k has no fixed per-value width (variable-length or structural kinds).
func (k Kind) FixedWidth() int {
	switch k {
	case KindInt8, KindUint8, KindBool, KindChar, KindPad:
		return 1
	case KindInt16, KindUint16, KindFloat16:
		return 2
	case KindInt24, KindUint24:
		return 3
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	case KindFloat128:
		return 16
	default:
		return 0
	}
}

// kindForChar maps a scalar type character to its Kind. ok is false for
// characters that are not fixed-width scalar types (special/structural
// characters are handled by the tokenizer directly).
func kindForChar(ch byte) (Kind, bool) {
	switch ch {
	case 'b':
		return KindInt8, true
	case 'B':
		return KindUint8, true
	case 'h':
		return KindInt16, true
	case 'H':
		return KindUint16, true
	case 't':
		return KindInt24, true
	case 'T':
		return KindUint24, true
	case 'i':
		return KindInt32, true
	case 'I':
		return KindUint32, true
	case 'q':
		return KindInt64, true
	case 'Q':
		return KindUint64, true
	case 'e':
		return KindFloat16, true
	case 'f':
		return KindFloat32, true
	case 'd':
		return KindFloat64, true
	case 'F':
		return KindFloat128, true
	case '?':
		return KindBool, true
	case 'c':
		return KindChar, true
	case 's':
		return KindByteString, true
	case 'X':
		return KindHexString, true
	case 'x':
		return KindPad, true
	default:
		return 0, false
	}
}
