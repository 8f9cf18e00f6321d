// Package pack implements the packer engine (component F): it drives a
// flat argument sequence across an already-analyzed token.Tree, appending
// encoded bytes to a pool.ByteBuffer and mirroring the unpacker's
// slot-indexing scheme for reference resolution.
package pack

import (
	"encoding/hex"

	"github.com/arloliu/rawpack/codec"
	"github.com/arloliu/rawpack/endian"
	"github.com/arloliu/rawpack/errs"
	"github.com/arloliu/rawpack/internal/pool"
	"github.com/arloliu/rawpack/token"
	"github.com/arloliu/rawpack/value"
)

// Run encodes args against tree, which must already have passed
// analyzer.Analyze, appending the result to buf in place. It returns the
// first encoding error, if any.
//
// defaultOrder is used only when tree carries no byte-order marker; it
// may be nil, in which case system order applies.
func Run(tree *token.Tree, args []value.Value, refdata []int64, defaultOrder endian.EndianEngine, buf *pool.ByteBuffer) error {
	order := tree.Order
	if !tree.HasMark {
		if defaultOrder != nil {
			order = defaultOrder
		} else {
			order = endian.GetNativeEngine()
		}
	}

	s := &state{refdata: refdata, order: order, format: tree.Format, buf: buf}
	_, err := s.encodeScope(tree.Root, args, 0)

	return err
}

type state struct {
	refdata []int64
	order   endian.EndianEngine
	format  string
	buf     *pool.ByteBuffer
}

func (s *state) argErr(argIndex int, sentinel error) error {
	return errs.NewDataError(s.format, argIndex, sentinel)
}

// encodeScope encodes one pass through nodes consuming args starting at
// argIdx, returning the new argIdx. It builds the scope's own flat value
// vector as it goes (needed so later siblings can resolve absolute/relative
// references against already-encoded values, the same as
// unpack.decodeScope); that vector is not returned.
func (s *state) encodeScope(nodes []*token.Node, args []value.Value, argIdx int) (int, error) {
	base := s.buf.Len()
	vals := make([]value.Value, 0, len(nodes))

	for _, n := range nodes {
		switch n.Kind {
		case token.KindAlignBase:
			base = s.buf.Len()

			continue

		case token.KindAlign:
			boundary, err := s.resolveCount(n, vals, argIdx)
			if err != nil {
				return 0, err
			}
			if boundary < 1 {
				boundary = 1
			}

			rel := s.buf.Len() - base
			pad := (boundary - rel%boundary) % boundary
			for i := 0; i < pad; i++ {
				s.buf.B = codec.EncodePad(s.buf.B)
			}

			continue
		}

		newIdx, v, err := s.encodeNode(n, args, vals, argIdx)
		if err != nil {
			return 0, err
		}

		argIdx = newIdx
		vals = append(vals, v...)
	}

	return argIdx, nil
}

// encodeNode consumes one node's arguments and appends its encoded bytes,
// returning the new argIdx and the values it contributes to the scope's
// flat vector.
func (s *state) encodeNode(n *token.Node, args []value.Value, scopeVals []value.Value, argIdx int) (int, []value.Value, error) {
	if n.Kind.IsScope() {
		return s.encodeSubScope(n, args, scopeVals, argIdx)
	}

	switch n.Kind {
	case token.KindPad:
		count, err := s.resolveCount(n, scopeVals, argIdx)
		if err != nil {
			return 0, nil, err
		}
		for i := 0; i < count; i++ {
			s.buf.B = codec.EncodePad(s.buf.B)
		}

		return argIdx, nil, nil

	case token.KindByteString:
		return s.encodeByteString(n, args, scopeVals, argIdx, false)

	case token.KindHexString:
		return s.encodeByteString(n, args, scopeVals, argIdx, true)

	case token.KindNullString:
		if argIdx >= len(args) {
			return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
		}
		text, ok := args[argIdx].Text()
		if !ok {
			return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
		}

		s.buf.MustWrite([]byte(text))
		s.buf.MustWriteByte(0x00)

		return argIdx + 1, []value.Value{value.TextVal(text)}, nil

	case token.KindRest:
		if argIdx >= len(args) {
			return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
		}
		raw, ok := args[argIdx].Bytes()
		if !ok {
			return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
		}

		s.buf.MustWrite(raw)

		return argIdx + 1, []value.Value{value.BytesVal(raw)}, nil

	default:
		return s.encodeScalars(n, args, scopeVals, argIdx)
	}
}

func (s *state) encodeByteString(n *token.Node, args []value.Value, scopeVals []value.Value, argIdx int, hexEncoded bool) (int, []value.Value, error) {
	count, err := s.resolveCount(n, scopeVals, argIdx)
	if err != nil {
		return 0, nil, err
	}
	if argIdx >= len(args) {
		return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
	}

	text, ok := args[argIdx].Text()
	if !ok {
		return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
	}

	var raw []byte
	if hexEncoded {
		raw, err = hex.DecodeString(text)
		if err != nil {
			return 0, nil, s.argErr(argIdx, errs.ErrLengthMismatch)
		}
		if len(raw) != count {
			return 0, nil, s.argErr(argIdx, errs.ErrLengthMismatch)
		}
	} else {
		raw = []byte(text)
		if len(raw) > count {
			return 0, nil, s.argErr(argIdx, errs.ErrLengthMismatch)
		}
		if len(raw) < count {
			padded := make([]byte, count)
			copy(padded, raw)
			raw = padded
		}
	}

	s.buf.MustWrite(raw)

	return argIdx + 1, []value.Value{value.TextVal(text)}, nil
}

// encodeScalars encodes a numeric/bool/char scalar, possibly repeated,
// consuming one argument per repetition.
func (s *state) encodeScalars(n *token.Node, args []value.Value, scopeVals []value.Value, argIdx int) (int, []value.Value, error) {
	count, err := s.resolveCount(n, scopeVals, argIdx)
	if err != nil {
		return 0, nil, err
	}

	out := make([]value.Value, 0, count)
	for i := 0; i < count; i++ {
		if argIdx >= len(args) {
			return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
		}

		v := args[argIdx]
		if err := s.encodeOneScalar(n.Kind, v, argIdx); err != nil {
			return 0, nil, err
		}

		out = append(out, v)
		argIdx++
	}

	return argIdx, out, nil
}

func (s *state) encodeOneScalar(kind token.Kind, v value.Value, argIdx int) error {
	var err error

	switch kind {
	case token.KindInt8:
		iv, ok := v.AsInt64()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeInt8(s.buf.B, iv)
	case token.KindUint8:
		uv, ok := unsignedOf(v)
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeUint8(s.buf.B, uv)
	case token.KindInt16:
		iv, ok := v.AsInt64()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeInt16(s.buf.B, iv, s.order)
	case token.KindUint16:
		uv, ok := unsignedOf(v)
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeUint16(s.buf.B, uv, s.order)
	case token.KindInt24:
		iv, ok := v.AsInt64()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeInt24(s.buf.B, iv, s.order)
	case token.KindUint24:
		uv, ok := unsignedOf(v)
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeUint24(s.buf.B, uv, s.order)
	case token.KindInt32:
		iv, ok := v.AsInt64()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeInt32(s.buf.B, iv, s.order)
	case token.KindUint32:
		uv, ok := unsignedOf(v)
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeUint32(s.buf.B, uv, s.order)
	case token.KindInt64:
		iv, ok := v.AsInt64()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeInt64(s.buf.B, iv, s.order)
	case token.KindUint64:
		uv, ok := unsignedOf(v)
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeUint64(s.buf.B, uv, s.order)
	case token.KindFloat16:
		fv, ok := v.Float()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeFloat16(s.buf.B, fv, s.order)
	case token.KindFloat32:
		fv, ok := v.Float()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeFloat32(s.buf.B, fv, s.order)
	case token.KindFloat64:
		fv, ok := v.Float()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeFloat64(s.buf.B, fv, s.order)
	case token.KindFloat128:
		fv, ok := v.Float()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B, err = codec.EncodeFloat128(s.buf.B, fv, s.order)
	case token.KindBool:
		bv, ok := v.Bool()
		if !ok {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B = codec.EncodeBool(s.buf.B, bv)
	case token.KindChar:
		bytes, ok := v.Bytes()
		if !ok || len(bytes) != 1 {
			return s.argErr(argIdx, errs.ErrArgumentShape)
		}
		s.buf.B = codec.EncodeChar(s.buf.B, bytes[0])
	default:
		return s.argErr(argIdx, errs.ErrUnknownToken)
	}

	if err != nil {
		return errs.NewOverflowError(s.format, argIdx)
	}

	return nil
}

// unsignedOf adapts value.Value's AsInt64 (which also accepts Int/Bool)
// to the unsigned encoders, since the argument boxing convention lets
// callers pass either Int64 or Uint64 for an unsigned field.
func unsignedOf(v value.Value) (uint64, bool) {
	if uv, ok := v.Uint(); ok {
		return uv, true
	}

	iv, ok := v.AsInt64()
	if !ok || iv < 0 {
		return 0, false
	}

	return uint64(iv), true
}

// encodeSubScope handles group/bounded-iterator/unbounded-iterator nodes.
// A group consumes one flat sequence shared across all r repetitions; an
// iterator (bounded or unbounded) consumes a sequence of per-iteration
// sub-sequences.
func (s *state) encodeSubScope(n *token.Node, args []value.Value, scopeVals []value.Value, argIdx int) (int, []value.Value, error) {
	if argIdx >= len(args) {
		return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
	}
	seq, ok := args[argIdx].Seq()
	if !ok {
		return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
	}

	switch n.Kind {
	case token.KindGroup:
		count, err := s.resolveCount(n, scopeVals, argIdx)
		if err != nil {
			return 0, nil, err
		}

		inner := 0
		for i := 0; i < count; i++ {
			newInner, err := s.encodeScope(n.Children, seq, inner)
			if err != nil {
				return 0, nil, err
			}
			inner = newInner
		}
		if inner != len(seq) {
			return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
		}

		return argIdx + 1, []value.Value{args[argIdx]}, nil

	case token.KindIter:
		count, err := s.resolveCount(n, scopeVals, argIdx)
		if err != nil {
			return 0, nil, err
		}
		if len(seq) != count {
			return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
		}

		for _, iter := range seq {
			sub, ok := iter.Seq()
			if !ok {
				return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
			}
			inner, err := s.encodeScope(n.Children, sub, 0)
			if err != nil {
				return 0, nil, err
			}
			if inner != len(sub) {
				return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
			}
		}

		return argIdx + 1, []value.Value{args[argIdx]}, nil

	case token.KindUnbounded:
		for _, iter := range seq {
			sub, ok := iter.Seq()
			if !ok {
				return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
			}
			inner, err := s.encodeScope(n.Children, sub, 0)
			if err != nil {
				return 0, nil, err
			}
			if inner != len(sub) {
				return 0, nil, s.argErr(argIdx, errs.ErrArgumentShape)
			}
		}

		return argIdx + 1, []value.Value{args[argIdx]}, nil

	default:
		return 0, nil, s.argErr(argIdx, errs.ErrUnknownToken)
	}
}

// resolveCount mirrors unpack.state.resolveCount: literal/external
// repeats resolve the same way at encode time, while absolute/relative
// references look up an already-encoded sibling in scopeVals.
func (s *state) resolveCount(n *token.Node, scopeVals []value.Value, argIdx int) (int, error) {
	switch n.Repeat.Kind {
	case token.RepeatNone:
		return 1, nil

	case token.RepeatLiteral:
		return n.Repeat.N, nil

	case token.RepeatExternal:
		if n.Repeat.N < 0 || n.Repeat.N >= len(s.refdata) {
			return 0, s.argErr(argIdx, errs.ErrReferenceRange)
		}

		return int(s.refdata[n.Repeat.N]), nil

	case token.RepeatAbsolute, token.RepeatRelative:
		idx := n.Repeat.N
		if n.Repeat.Kind == token.RepeatRelative {
			// See unpack.state.resolveCount: count back from the number of
			// values actually produced so far, not from n's static
			// ElementIndex, since an earlier reference-driven-repeat
			// scalar's static slot count can understate its runtime count.
			idx = len(scopeVals) - n.Repeat.N
		}
		if idx < 0 || idx >= len(scopeVals) {
			return 0, s.argErr(argIdx, errs.ErrReferenceRange)
		}

		iv, ok := scopeVals[idx].AsInt64()
		if !ok || iv < 0 {
			return 0, s.argErr(argIdx, errs.ErrReferenceNotNumeric)
		}

		return int(iv), nil

	default:
		return 1, nil
	}
}
