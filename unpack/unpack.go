// Package unpack implements the unpacker engine (component E): it drives
// a byte cursor across an already-analyzed token.Tree, maintaining a
// per-scope value vector and alignment anchor, and produces the nested
// value.Value tree the format string describes.
package unpack

import (
	"encoding/hex"

	"github.com/arloliu/rawpack/codec"
	"github.com/arloliu/rawpack/endian"
	"github.com/arloliu/rawpack/errs"
	"github.com/arloliu/rawpack/token"
	"github.com/arloliu/rawpack/value"
)

// Run decodes data starting at offset against tree, which must already
// have passed analyzer.Analyze. It returns the top-level flat value
// vector and the cursor position after the last token consumed.
//
// defaultOrder is used only when tree carries no byte-order marker; it
// may be nil, in which case system order applies.
func Run(tree *token.Tree, data []byte, offset int, refdata []int64, defaultOrder endian.EndianEngine) ([]value.Value, int, error) {
	order := tree.Order
	if !tree.HasMark {
		if defaultOrder != nil {
			order = defaultOrder
		} else {
			order = endian.GetNativeEngine()
		}
	}

	s := &state{data: data, refdata: refdata, order: order, format: tree.Format}

	return s.decodeScope(tree.Root, offset)
}

type state struct {
	data    []byte
	refdata []int64
	order   endian.EndianEngine
	format  string
}

func (s *state) dataErr(offset int, sentinel error) error {
	return errs.NewDataError(s.format, offset, sentinel)
}

// decodeScope decodes one pass through nodes starting at cursor, returning
// the scope's flat value vector (one entry per element-index slot; see
// analyzer.slotCount) and the cursor after the last token.
func (s *state) decodeScope(nodes []*token.Node, cursor int) ([]value.Value, int, error) {
	base := cursor
	vals := make([]value.Value, 0, len(nodes))

	for _, n := range nodes {
		switch n.Kind {
		case token.KindAlignBase:
			base = cursor

			continue

		case token.KindAlign:
			boundary, err := s.resolveCount(n, vals, cursor)
			if err != nil {
				return nil, 0, err
			}
			if boundary < 1 {
				boundary = 1
			}

			rel := cursor - base
			pad := (boundary - rel%boundary) % boundary
			if cursor+pad > len(s.data) {
				return nil, 0, s.dataErr(cursor, errs.ErrShortRead)
			}
			cursor = cursor + pad

			continue
		}

		v, newCursor, err := s.decodeNode(n, vals, cursor)
		if err != nil {
			return nil, 0, err
		}

		cursor = newCursor
		vals = append(vals, v...)
	}

	return vals, cursor, nil
}

// decodeNode decodes one node's contribution to the scope's flat value
// vector, returning the values it appends (zero, one, or many).
func (s *state) decodeNode(n *token.Node, scopeVals []value.Value, cursor int) ([]value.Value, int, error) {
	if n.Kind.IsScope() {
		return s.decodeSubScope(n, scopeVals, cursor)
	}

	switch n.Kind {
	case token.KindPad:
		count, err := s.resolveCount(n, scopeVals, cursor)
		if err != nil {
			return nil, 0, err
		}
		if cursor+count > len(s.data) {
			return nil, 0, s.dataErr(cursor, errs.ErrShortRead)
		}

		return nil, cursor + count, nil

	case token.KindByteString:
		count, err := s.resolveCount(n, scopeVals, cursor)
		if err != nil {
			return nil, 0, err
		}
		if cursor+count > len(s.data) {
			return nil, 0, s.dataErr(cursor, errs.ErrShortRead)
		}

		return []value.Value{value.TextVal(string(s.data[cursor : cursor+count]))}, cursor + count, nil

	case token.KindHexString:
		count, err := s.resolveCount(n, scopeVals, cursor)
		if err != nil {
			return nil, 0, err
		}
		if cursor+count > len(s.data) {
			return nil, 0, s.dataErr(cursor, errs.ErrShortRead)
		}

		return []value.Value{value.TextVal(hex.EncodeToString(s.data[cursor : cursor+count]))}, cursor + count, nil

	case token.KindNullString:
		end := cursor
		for end < len(s.data) && s.data[end] != 0x00 {
			end++
		}
		if end >= len(s.data) {
			return nil, 0, s.dataErr(cursor, errs.ErrUnterminatedString)
		}

		return []value.Value{value.TextVal(string(s.data[cursor:end]))}, end + 1, nil

	case token.KindRest:
		rest := s.data[cursor:]

		return []value.Value{value.BytesVal(rest)}, len(s.data), nil

	default:
		return s.decodeScalars(n, scopeVals, cursor)
	}
}

// decodeScalars decodes a numeric/bool/char scalar, possibly repeated,
// appending one value.Value per repetition.
func (s *state) decodeScalars(n *token.Node, scopeVals []value.Value, cursor int) ([]value.Value, int, error) {
	count, err := s.resolveCount(n, scopeVals, cursor)
	if err != nil {
		return nil, 0, err
	}

	out := make([]value.Value, 0, count)
	for i := 0; i < count; i++ {
		v, newCursor, err := s.decodeOneScalar(n.Kind, cursor)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
		cursor = newCursor
	}

	return out, cursor, nil
}

func (s *state) decodeOneScalar(kind token.Kind, cursor int) (value.Value, int, error) {
	width := kind.FixedWidth()
	if width == 0 {
		width = 1 // kinds without a fixed width; none reach here
	}
	if cursor+width > len(s.data) {
		return value.Value{}, 0, s.dataErr(cursor, errs.ErrShortRead)
	}

	data := s.data[cursor:]

	switch kind {
	case token.KindInt8:
		v, err := codec.DecodeInt8(data)
		return value.Int64(v), cursor + width, s.wrap(cursor, err)
	case token.KindUint8:
		v, err := codec.DecodeUint8(data)
		return value.Uint64(v), cursor + width, s.wrap(cursor, err)
	case token.KindInt16:
		v, err := codec.DecodeInt16(data, s.order)
		return value.Int64(v), cursor + width, s.wrap(cursor, err)
	case token.KindUint16:
		v, err := codec.DecodeUint16(data, s.order)
		return value.Uint64(v), cursor + width, s.wrap(cursor, err)
	case token.KindInt24:
		v, err := codec.DecodeInt24(data, s.order)
		return value.Int64(v), cursor + width, s.wrap(cursor, err)
	case token.KindUint24:
		v, err := codec.DecodeUint24(data, s.order)
		return value.Uint64(v), cursor + width, s.wrap(cursor, err)
	case token.KindInt32:
		v, err := codec.DecodeInt32(data, s.order)
		return value.Int64(v), cursor + width, s.wrap(cursor, err)
	case token.KindUint32:
		v, err := codec.DecodeUint32(data, s.order)
		return value.Uint64(v), cursor + width, s.wrap(cursor, err)
	case token.KindInt64:
		v, err := codec.DecodeInt64(data, s.order)
		return value.Int64(v), cursor + width, s.wrap(cursor, err)
	case token.KindUint64:
		v, err := codec.DecodeUint64(data, s.order)
		return value.Uint64(v), cursor + width, s.wrap(cursor, err)
	case token.KindFloat16:
		v, err := codec.DecodeFloat16(data, s.order)
		return value.Float64(v), cursor + width, s.wrap(cursor, err)
	case token.KindFloat32:
		v, err := codec.DecodeFloat32(data, s.order)
		return value.Float64(v), cursor + width, s.wrap(cursor, err)
	case token.KindFloat64:
		v, err := codec.DecodeFloat64(data, s.order)
		return value.Float64(v), cursor + width, s.wrap(cursor, err)
	case token.KindFloat128:
		v, err := codec.DecodeFloat128(data, s.order)
		return value.Float64(v), cursor + width, s.wrap(cursor, err)
	case token.KindBool:
		v, err := codec.DecodeBool(data)
		return value.Boolean(v), cursor + width, s.wrap(cursor, err)
	case token.KindChar:
		v, err := codec.DecodeChar(data)
		return value.BytesVal([]byte{v}), cursor + width, s.wrap(cursor, err)
	default:
		return value.Value{}, cursor, s.dataErr(cursor, errs.ErrUnknownToken)
	}
}

func (s *state) wrap(offset int, err error) error {
	if err == nil {
		return nil
	}

	return s.dataErr(offset, err)
}

// decodeSubScope handles group/bounded-iterator/unbounded-iterator
// nodes, each of which emits exactly one value.Value into the parent
// scope's vector.
func (s *state) decodeSubScope(n *token.Node, scopeVals []value.Value, cursor int) ([]value.Value, int, error) {
	switch n.Kind {
	case token.KindGroup:
		count, err := s.resolveCount(n, scopeVals, cursor)
		if err != nil {
			return nil, 0, err
		}

		flat := make([]value.Value, 0)
		for i := 0; i < count; i++ {
			sub, newCursor, err := s.decodeScope(n.Children, cursor)
			if err != nil {
				return nil, 0, err
			}
			flat = append(flat, sub...)
			cursor = newCursor
		}

		return []value.Value{value.SeqVal(flat)}, cursor, nil

	case token.KindIter:
		count, err := s.resolveCount(n, scopeVals, cursor)
		if err != nil {
			return nil, 0, err
		}

		iters := make([]value.Value, 0, count)
		for i := 0; i < count; i++ {
			sub, newCursor, err := s.decodeScope(n.Children, cursor)
			if err != nil {
				return nil, 0, err
			}
			iters = append(iters, value.SeqVal(sub))
			cursor = newCursor
		}

		return []value.Value{value.SeqVal(iters)}, cursor, nil

	case token.KindUnbounded:
		iters := make([]value.Value, 0)
		for cursor < len(s.data) {
			sub, newCursor, err := s.decodeScope(n.Children, cursor)
			if err != nil {
				return nil, 0, err
			}
			if newCursor <= cursor || newCursor > len(s.data) {
				return nil, 0, s.dataErr(cursor, errs.ErrIterationMismatch)
			}
			iters = append(iters, value.SeqVal(sub))
			cursor = newCursor
		}

		return []value.Value{value.SeqVal(iters)}, cursor, nil

	default:
		return nil, 0, s.dataErr(cursor, errs.ErrUnknownToken)
	}
}

// resolveCount resolves n's repeat specifier to a concrete count at
// decode time: RepeatNone is 1, literal counts are themselves, external
// references look up refdata, and absolute/relative references look up
// an already-decoded sibling in scopeVals by its element-index slot.
func (s *state) resolveCount(n *token.Node, scopeVals []value.Value, cursor int) (int, error) {
	switch n.Repeat.Kind {
	case token.RepeatNone:
		return 1, nil

	case token.RepeatLiteral:
		return n.Repeat.N, nil

	case token.RepeatExternal:
		if n.Repeat.N < 0 || n.Repeat.N >= len(s.refdata) {
			return 0, s.dataErr(cursor, errs.ErrReferenceRange)
		}

		return int(s.refdata[n.Repeat.N]), nil

	case token.RepeatAbsolute, token.RepeatRelative:
		idx := n.Repeat.N
		if n.Repeat.Kind == token.RepeatRelative {
			// Relative references count back from how many values this
			// scope has actually produced so far, not from n's static
			// ElementIndex: an earlier reference-driven-repeat scalar is
			// pinned to one static slot (analyzer.slotCount's
			// documented simplification) but may have appended several
			// runtime values, which a static index would miss.
			idx = len(scopeVals) - n.Repeat.N
		}
		if idx < 0 || idx >= len(scopeVals) {
			return 0, s.dataErr(cursor, errs.ErrReferenceRange)
		}

		iv, ok := scopeVals[idx].AsInt64()
		if !ok || iv < 0 {
			return 0, s.dataErr(cursor, errs.ErrReferenceNotNumeric)
		}

		return int(iv), nil

	default:
		return 1, nil
	}
}
