// Package codec implements the fixed-width scalar codec: encode/decode for
// every primitive the format language's token characters name, under a
// caller-supplied byte order.
//
// Every Decode* reads from the front of a byte slice and returns the decoded
// value and an error; the caller advances by the type's Width. Every
// Encode* appends to a []byte and returns the grown slice, the same calling
// convention endian.EndianEngine uses for AppendUint64 (see
// endian/engine.go).
package codec

import (
	"math"

	"github.com/arloliu/rawpack/endian"
	"github.com/arloliu/rawpack/errs"
)

// Width returns the encoded byte width of the named scalar type character,
// or 0 if ch is not a fixed-width scalar (e.g. it is a variable-length or
// structural token the caller must handle separately).
func Width(ch byte) int {
	switch ch {
	case 'b', 'B', 'c', '?', 'x':
		return 1
	case 'h', 'H', 'e':
		return 2
	case 't', 'T':
		return 3
	case 'i', 'I', 'f':
		return 4
	case 'q', 'Q', 'd':
		return 8
	case 'F':
		return 16
	default:
		return 0
	}
}

// DecodeInt8 decodes a signed 8-bit integer.
func DecodeInt8(data []byte) (int64, error) {
	if len(data) < 1 {
		return 0, errs.ErrShortRead
	}

	return int64(int8(data[0])), nil
}

// DecodeUint8 decodes an unsigned 8-bit integer.
func DecodeUint8(data []byte) (uint64, error) {
	if len(data) < 1 {
		return 0, errs.ErrShortRead
	}

	return uint64(data[0]), nil
}

// DecodeInt16 decodes a signed 16-bit integer using engine's byte order.
func DecodeInt16(data []byte, engine endian.EndianEngine) (int64, error) {
	if len(data) < 2 {
		return 0, errs.ErrShortRead
	}

	return int64(int16(engine.Uint16(data))), nil
}

// DecodeUint16 decodes an unsigned 16-bit integer.
func DecodeUint16(data []byte, engine endian.EndianEngine) (uint64, error) {
	if len(data) < 2 {
		return 0, errs.ErrShortRead
	}

	return uint64(engine.Uint16(data)), nil
}

// DecodeInt24 decodes a signed 24-bit two's-complement integer: three bytes
// in the chosen byte order, sign bit in the MSB of the logical value.
func DecodeInt24(data []byte, engine endian.EndianEngine) (int64, error) {
	u, err := DecodeUint24(data, engine)
	if err != nil {
		return 0, err
	}

	if u&0x800000 != 0 {
		return int64(u) - (1 << 24), nil
	}

	return int64(u), nil
}

// DecodeUint24 decodes an unsigned 24-bit integer.
func DecodeUint24(data []byte, engine endian.EndianEngine) (uint64, error) {
	if len(data) < 3 {
		return 0, errs.ErrShortRead
	}

	if isLittle(engine) {
		return uint64(data[0]) | uint64(data[1])<<8 | uint64(data[2])<<16, nil
	}

	return uint64(data[2]) | uint64(data[1])<<8 | uint64(data[0])<<16, nil
}

// DecodeInt32 decodes a signed 32-bit integer.
func DecodeInt32(data []byte, engine endian.EndianEngine) (int64, error) {
	if len(data) < 4 {
		return 0, errs.ErrShortRead
	}

	return int64(int32(engine.Uint32(data))), nil
}

// DecodeUint32 decodes an unsigned 32-bit integer.
func DecodeUint32(data []byte, engine endian.EndianEngine) (uint64, error) {
	if len(data) < 4 {
		return 0, errs.ErrShortRead
	}

	return uint64(engine.Uint32(data)), nil
}

// DecodeInt64 decodes a signed 64-bit integer.
func DecodeInt64(data []byte, engine endian.EndianEngine) (int64, error) {
	if len(data) < 8 {
		return 0, errs.ErrShortRead
	}

	return int64(engine.Uint64(data)), nil
}

// DecodeUint64 decodes an unsigned 64-bit integer.
func DecodeUint64(data []byte, engine endian.EndianEngine) (uint64, error) {
	if len(data) < 8 {
		return 0, errs.ErrShortRead
	}

	return engine.Uint64(data), nil
}

// DecodeFloat16 decodes an IEEE 754-2008 binary16 (half) float, widened to
// float64. Go has no native float16; this is a software decode.
func DecodeFloat16(data []byte, engine endian.EndianEngine) (float64, error) {
	if len(data) < 2 {
		return 0, errs.ErrShortRead
	}

	return half16ToFloat64(engine.Uint16(data)), nil
}

// DecodeFloat32 decodes a single-precision float.
func DecodeFloat32(data []byte, engine endian.EndianEngine) (float64, error) {
	if len(data) < 4 {
		return 0, errs.ErrShortRead
	}

	return float64(math.Float32frombits(engine.Uint32(data))), nil
}

// DecodeFloat64 decodes a double-precision float.
func DecodeFloat64(data []byte, engine endian.EndianEngine) (float64, error) {
	if len(data) < 8 {
		return 0, errs.ErrShortRead
	}

	return math.Float64frombits(engine.Uint64(data)), nil
}

// DecodeFloat128 best-effort decodes a quadruple-precision float as the
// nearest float64, by reading the two halves in order and promoting the
// high half's sign/exponent/fraction while folding the low half's top bits
// into the mantissa. Go has no native float128; callers needing exact
// quad-precision round-trips should treat this path as lossy.
func DecodeFloat128(data []byte, engine endian.EndianEngine) (float64, error) {
	if len(data) < 16 {
		return 0, errs.ErrShortRead
	}

	var hi, lo uint64
	if isLittle(engine) {
		lo, hi = engine.Uint64(data[:8]), engine.Uint64(data[8:])
	} else {
		hi, lo = engine.Uint64(data[:8]), engine.Uint64(data[8:])
	}

	return quad128ToFloat64(hi, lo), nil
}

// DecodeBool decodes a boolean: 0 -> false, any nonzero -> true.
func DecodeBool(data []byte) (bool, error) {
	if len(data) < 1 {
		return false, errs.ErrShortRead
	}

	return data[0] != 0, nil
}

// DecodeChar decodes a single byte verbatim (used by the "c" token family).
func DecodeChar(data []byte) (byte, error) {
	if len(data) < 1 {
		return 0, errs.ErrShortRead
	}

	return data[0], nil
}

// SkipPad reports whether data has at least one byte to skip for the "x"
// padding token; it produces no decoded value.
func SkipPad(data []byte) error {
	if len(data) < 1 {
		return errs.ErrShortRead
	}

	return nil
}

// --- Encoders ---

// EncodeInt8 appends a signed 8-bit integer, failing on overflow.
func EncodeInt8(buf []byte, v int64) ([]byte, error) {
	if v < math.MinInt8 || v > math.MaxInt8 {
		return buf, errs.ErrOverflow
	}

	return append(buf, byte(int8(v))), nil
}

// EncodeUint8 appends an unsigned 8-bit integer, failing on overflow.
func EncodeUint8(buf []byte, v uint64) ([]byte, error) {
	if v > math.MaxUint8 {
		return buf, errs.ErrOverflow
	}

	return append(buf, byte(v)), nil
}

// EncodeInt16 appends a signed 16-bit integer.
func EncodeInt16(buf []byte, v int64, engine endian.EndianEngine) ([]byte, error) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return buf, errs.ErrOverflow
	}

	return engine.AppendUint16(buf, uint16(int16(v))), nil
}

// EncodeUint16 appends an unsigned 16-bit integer.
func EncodeUint16(buf []byte, v uint64, engine endian.EndianEngine) ([]byte, error) {
	if v > math.MaxUint16 {
		return buf, errs.ErrOverflow
	}

	return engine.AppendUint16(buf, uint16(v)), nil
}

// EncodeInt24 appends a signed 24-bit two's-complement integer.
func EncodeInt24(buf []byte, v int64, engine endian.EndianEngine) ([]byte, error) {
	if v < -(1<<23) || v > (1<<23)-1 {
		return buf, errs.ErrOverflow
	}

	u := uint64(v) & 0xFFFFFF

	return encodeUint24Bytes(buf, u, engine), nil
}

// EncodeUint24 appends an unsigned 24-bit integer.
func EncodeUint24(buf []byte, v uint64, engine endian.EndianEngine) ([]byte, error) {
	if v > 0xFFFFFF {
		return buf, errs.ErrOverflow
	}

	return encodeUint24Bytes(buf, v, engine), nil
}

func encodeUint24Bytes(buf []byte, v uint64, engine endian.EndianEngine) []byte {
	if isLittle(engine) {
		return append(buf, byte(v), byte(v>>8), byte(v>>16))
	}

	return append(buf, byte(v>>16), byte(v>>8), byte(v))
}

// EncodeInt32 appends a signed 32-bit integer.
func EncodeInt32(buf []byte, v int64, engine endian.EndianEngine) ([]byte, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return buf, errs.ErrOverflow
	}

	return engine.AppendUint32(buf, uint32(int32(v))), nil
}

// EncodeUint32 appends an unsigned 32-bit integer.
func EncodeUint32(buf []byte, v uint64, engine endian.EndianEngine) ([]byte, error) {
	if v > math.MaxUint32 {
		return buf, errs.ErrOverflow
	}

	return engine.AppendUint32(buf, uint32(v)), nil
}

// EncodeInt64 appends a signed 64-bit integer.
func EncodeInt64(buf []byte, v int64, engine endian.EndianEngine) ([]byte, error) {
	return engine.AppendUint64(buf, uint64(v)), nil
}

// EncodeUint64 appends an unsigned 64-bit integer.
func EncodeUint64(buf []byte, v uint64, engine endian.EndianEngine) ([]byte, error) {
	return engine.AppendUint64(buf, v), nil
}

// EncodeFloat16 appends an IEEE 754-2008 binary16 (half) float, rounding
// from float64.
func EncodeFloat16(buf []byte, v float64, engine endian.EndianEngine) ([]byte, error) {
	return engine.AppendUint16(buf, float64ToHalf16(v)), nil
}

// EncodeFloat32 appends a single-precision float.
func EncodeFloat32(buf []byte, v float64, engine endian.EndianEngine) ([]byte, error) {
	return engine.AppendUint32(buf, math.Float32bits(float32(v))), nil
}

// EncodeFloat64 appends a double-precision float.
func EncodeFloat64(buf []byte, v float64, engine endian.EndianEngine) ([]byte, error) {
	return engine.AppendUint64(buf, math.Float64bits(v)), nil
}

// EncodeFloat128 appends a best-effort quadruple-precision float, widening
// from float64; see DecodeFloat128 for the round-trip caveat.
func EncodeFloat128(buf []byte, v float64, engine endian.EndianEngine) ([]byte, error) {
	hi, lo := float64ToQuad128(v)
	if isLittle(engine) {
		buf = engine.AppendUint64(buf, lo)
		buf = engine.AppendUint64(buf, hi)

		return buf, nil
	}

	buf = engine.AppendUint64(buf, hi)
	buf = engine.AppendUint64(buf, lo)

	return buf, nil
}

// EncodeBool appends a boolean: false -> 0x00, true -> 0x01.
func EncodeBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 0x01)
	}

	return append(buf, 0x00)
}

// EncodeChar appends a single byte verbatim.
func EncodeChar(buf []byte, v byte) []byte {
	return append(buf, v)
}

// EncodePad appends a single zero pad byte; it consumes no argument.
func EncodePad(buf []byte) []byte {
	return append(buf, 0x00)
}

func isLittle(engine endian.EndianEngine) bool {
	return engine == endian.GetLittleEndianEngine()
}
