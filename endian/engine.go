// Package endian provides byte order utilities for binary encoding and decoding.
//
// This package extends Go's standard encoding/binary package by combining
// ByteOrder and AppendByteOrder interfaces into a unified EndianEngine interface,
// which is what the codec, pack, and unpack packages take as their byte-order
// argument instead of a bare encoding/binary.ByteOrder.
//
// # Basic Usage
//
// A format string's byte-order marker ('<', '>', '=') resolves to one of these
// engines via ResolveMark; code that needs one directly should prefer
// GetNativeEngine() or an explicit little/big-endian engine:
//
//	import "github.com/arloliu/rawpack/endian"
//
//	engine := endian.GetLittleEndianEngine()
//	v, err := codec.DecodeUint64(data, engine)
//
// For interoperability with big-endian wire formats:
//
//	engine := endian.GetBigEndianEngine()
//	v, err := codec.DecodeUint64(data, engine)
//
// # Performance
//
// Using EndianEngine (which includes AppendByteOrder) provides approximately 30%
// better performance for appending operations compared to ByteOrder alone:
//
//	// Using EndianEngine (recommended)
//	buf = engine.AppendUint64(buf, value)  // ~30% faster
//
//	// Using ByteOrder only
//	tmp := make([]byte, 8)
//	engine.PutUint64(tmp, value)
//	buf = append(buf, tmp...)  // Slower, extra allocation
//
// # Thread Safety
//
// All functions and methods in this package are safe for concurrent use.
// The returned EndianEngine instances are immutable and stateless.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian from
// the standard library, making it fully compatible with existing Go code while
// providing access to both read/write and append operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// CheckEndianness uses a fixed integer value to determine the host's byte order.
func CheckEndianness() binary.ByteOrder {
	// 0x0100 is 256. For a little-endian system, the LSB (0x00) is first.
	// For a big-endian system, the MSB (0x01) is first.
	var i uint16 = 0x0100

	// Create a byte slice pointing to the memory address of 'i'.
	// We only need the first byte.
	b := (*[2]byte)(unsafe.Pointer(&i))

	// Check the first byte at the lowest memory address
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}

func IsNativeBigEndian() bool {
	return CheckEndianness() == binary.BigEndian
}

func CompareNativeEndian(engine EndianEngine) bool {
	return engine == CheckEndianness()
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// GetNativeEngine returns the engine matching the host's native byte order.
func GetNativeEngine() EndianEngine {
	if IsNativeBigEndian() {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// Mark is a format-string byte-order prefix character: one of "=@!><".
type Mark byte

const (
	MarkNative    Mark = '=' // system order, no native alignment
	MarkNativeAt  Mark = '@' // alias of MarkNative; no native alignment either
	MarkBigBang   Mark = '!' // network order, alias of MarkBig
	MarkBig       Mark = '>'
	MarkLittle    Mark = '<'
	markNone      Mark = 0
)

// ResolveMark maps a leading format-string byte-order character to an
// EndianEngine. It reports whether b was consumed as a recognized marker;
// unrecognized bytes leave the engine unset so the caller can fall back to
// its own default order.
//
// Per the format grammar, "=" and "@" both select system order without
// native alignment, and "!" is an alias of ">".
func ResolveMark(b byte) (engine EndianEngine, ok bool) {
	switch Mark(b) {
	case MarkNative, MarkNativeAt:
		return GetNativeEngine(), true
	case MarkBig, MarkBigBang:
		return GetBigEndianEngine(), true
	case MarkLittle:
		return GetLittleEndianEngine(), true
	default:
		return nil, false
	}
}
