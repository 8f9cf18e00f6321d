package codec

import (
	"math"
	"testing"

	"github.com/arloliu/rawpack/endian"
	"github.com/arloliu/rawpack/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidth(t *testing.T) {
	tests := []struct {
		ch   byte
		want int
	}{
		{'b', 1}, {'B', 1}, {'c', 1}, {'?', 1}, {'x', 1},
		{'h', 2}, {'H', 2}, {'e', 2},
		{'t', 3}, {'T', 3},
		{'i', 4}, {'I', 4}, {'f', 4},
		{'q', 8}, {'Q', 8}, {'d', 8},
		{'F', 16},
		{'n', 0}, {'$', 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Width(tt.ch), "char %q", tt.ch)
	}
}

func TestInt8RoundTrip(t *testing.T) {
	buf, err := EncodeInt8(nil, -5)
	require.NoError(t, err)

	got, err := DecodeInt8(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), got)
}

func TestInt8Overflow(t *testing.T) {
	_, err := EncodeInt8(nil, 200)
	assert.ErrorIs(t, err, errs.ErrOverflow)
}

func TestUint24RoundTrip(t *testing.T) {
	for _, engine := range []endian.EndianEngine{endian.GetLittleEndianEngine(), endian.GetBigEndianEngine()} {
		buf, err := EncodeUint24(nil, 0xABCDEF, engine)
		require.NoError(t, err)
		require.Len(t, buf, 3)

		got, err := DecodeUint24(buf, engine)
		require.NoError(t, err)
		assert.Equal(t, uint64(0xABCDEF), got)
	}
}

func TestInt24RoundTrip_Negative(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	buf, err := EncodeInt24(nil, -1, engine)
	require.NoError(t, err)

	got, err := DecodeInt24(buf, engine)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), got)
}

func TestInt24Overflow(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	_, err := EncodeInt24(nil, 1<<23, engine)
	assert.Error(t, err)
}

func TestUint64RoundTrip(t *testing.T) {
	engine := endian.GetBigEndianEngine()
	buf, err := EncodeUint64(nil, 0x0102030405060708, engine)
	require.NoError(t, err)

	got, err := DecodeUint64(buf, engine)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), got)
}

func TestFloat32RoundTrip(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	buf, err := EncodeFloat32(nil, 3.5, engine)
	require.NoError(t, err)

	got, err := DecodeFloat32(buf, engine)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got, 0.0001)
}

func TestFloat64RoundTrip(t *testing.T) {
	engine := endian.GetBigEndianEngine()
	buf, err := EncodeFloat64(nil, math.Pi, engine)
	require.NoError(t, err)

	got, err := DecodeFloat64(buf, engine)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi, got, 1e-12)
}

func TestFloat16RoundTrip(t *testing.T) {
	tests := []float64{0, 1, -1, 0.5, 10.25, -100}
	engine := endian.GetLittleEndianEngine()

	for _, v := range tests {
		buf, err := EncodeFloat16(nil, v, engine)
		require.NoError(t, err)

		got, err := DecodeFloat16(buf, engine)
		require.NoError(t, err)
		assert.InDelta(t, v, got, 0.05, "value %v", v)
	}
}

func TestFloat128RoundTrip_Approximate(t *testing.T) {
	tests := []float64{0, 1, -1, 3.5, math.Pi}
	engine := endian.GetBigEndianEngine()

	for _, v := range tests {
		buf, err := EncodeFloat128(nil, v, engine)
		require.NoError(t, err)
		require.Len(t, buf, 16)

		got, err := DecodeFloat128(buf, engine)
		require.NoError(t, err)
		assert.InDelta(t, v, got, 1e-9, "value %v", v)
	}
}

func TestBoolCodec(t *testing.T) {
	buf := EncodeBool(nil, true)
	got, err := DecodeBool(buf)
	require.NoError(t, err)
	assert.True(t, got)

	buf = EncodeBool(nil, false)
	got, err = DecodeBool(buf)
	require.NoError(t, err)
	assert.False(t, got)

	// Any nonzero byte decodes true.
	got, err = DecodeBool([]byte{0x7F})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCharCodec(t *testing.T) {
	buf := EncodeChar(nil, 'Z')
	got, err := DecodeChar(buf)
	require.NoError(t, err)
	assert.Equal(t, byte('Z'), got)
}

func TestPad(t *testing.T) {
	buf := EncodePad(nil)
	assert.Equal(t, []byte{0x00}, buf)

	require.NoError(t, SkipPad([]byte{0xFF}))
	assert.Error(t, SkipPad(nil))
}

func TestShortReads(t *testing.T) {
	engine := endian.GetLittleEndianEngine()

	_, err := DecodeInt8(nil)
	assert.Error(t, err)

	_, err = DecodeInt16(nil, engine)
	assert.Error(t, err)

	_, err = DecodeUint24([]byte{1, 2}, engine)
	assert.Error(t, err)

	_, err = DecodeInt64([]byte{1, 2, 3}, engine)
	assert.Error(t, err)

	_, err = DecodeFloat128(make([]byte, 10), engine)
	assert.Error(t, err)
}
