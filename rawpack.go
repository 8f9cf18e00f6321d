// Package rawpack reads and writes binary packed data described by a
// compact textual format language: fixed-width scalars, variable-length
// strings, groups, iterators, alignment, and reference-driven repeat
// counts resolved either against caller-supplied external data or
// already-decoded sibling values.
//
// A format string is compiled once (Tokenize + Analyze) into a Struct,
// or used directly through the package-level Unpack/Pack functions,
// which compile and discard on every call — prefer NewStruct when the
// same format is used repeatedly.
package rawpack

import (
	"fmt"
	"io"
	"iter"

	"github.com/arloliu/rawpack/analyzer"
	"github.com/arloliu/rawpack/endian"
	"github.com/arloliu/rawpack/errs"
	"github.com/arloliu/rawpack/internal/options"
	"github.com/arloliu/rawpack/internal/pool"
	"github.com/arloliu/rawpack/pack"
	"github.com/arloliu/rawpack/token"
	"github.com/arloliu/rawpack/unpack"
	"github.com/arloliu/rawpack/value"
)

// Struct is a compiled format string: a validated, element-indexed
// token.Tree ready to drive the unpack/pack engines any number of times
// without re-tokenizing or re-analyzing.
type Struct struct {
	tree         *token.Tree
	unsafeRefs   bool
	defaultOrder endian.EndianEngine
}

// StructOption configures NewStruct.
type StructOption = options.Option[*structConfig]

type structConfig struct {
	unsafeRefs   bool
	defaultOrder endian.EndianEngine
}

// WithUnsafeReferences disables the safe-mode determinate-span check
// the analyzer otherwise enforces on absolute/relative repeat references
// (§4.C), allowing formats where a reference's span crosses
// data-dependent tokens.
func WithUnsafeReferences() StructOption {
	return options.NoError(func(c *structConfig) {
		c.unsafeRefs = true
	})
}

// WithDefaultOrder sets the byte order used when the format string
// carries no byte-order marker prefix. Native order applies if unset.
func WithDefaultOrder(o endian.EndianEngine) StructOption {
	return options.NoError(func(c *structConfig) {
		c.defaultOrder = o
	})
}

// NewStruct compiles format into a reusable Struct.
func NewStruct(format string, opts ...StructOption) (*Struct, error) {
	cfg := &structConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	tree, err := token.Tokenize(format)
	if err != nil {
		return nil, err
	}

	if err := analyzer.Analyze(tree, cfg.unsafeRefs); err != nil {
		return nil, err
	}

	return &Struct{tree: tree, unsafeRefs: cfg.unsafeRefs, defaultOrder: cfg.defaultOrder}, nil
}

// CalcSize returns the encoded byte length of s's format, failing if any
// part of it is data-dependent (§4.D).
func (s *Struct) CalcSize(refdata ...int64) (int, error) {
	return analyzer.CalcSize(s.tree, refdata)
}

// Unpack decodes data in full against s's format, starting at offset 0.
func (s *Struct) Unpack(data []byte, refdata ...int64) ([]value.Value, error) {
	vals, _, err := unpack.Run(s.tree, data, 0, refdata, s.defaultOrder)

	return vals, err
}

// UnpackFrom decodes data against s's format starting at offset,
// returning the cursor position after the last token consumed.
func (s *Struct) UnpackFrom(data []byte, offset int, refdata ...int64) ([]value.Value, int, error) {
	return unpack.Run(s.tree, data, offset, refdata, s.defaultOrder)
}

// IterUnpack repeatedly decodes s's format starting at offset 0 and then
// at each successive cursor position, yielding one []value.Value per
// record. data's length must be an exact multiple of s's determinate
// size; a trailing partial record is otherwise indistinguishable from
// clean exhaustion, so it is rejected up front rather than silently
// dropped.
func (s *Struct) IterUnpack(data []byte, refdata ...int64) (iter.Seq[[]value.Value], error) {
	size, err := s.CalcSize(refdata...)
	if err != nil {
		return nil, err
	}
	if size > 0 && len(data)%size != 0 {
		return nil, errs.NewDataError(s.tree.Format, len(data), errs.ErrLengthMismatch)
	}

	return func(yield func([]value.Value) bool) {
		offset := 0
		for offset < len(data) {
			vals, next, err := unpack.Run(s.tree, data, offset, refdata, s.defaultOrder)
			if err != nil {
				return
			}
			if !yield(vals) {
				return
			}
			if next <= offset {
				return
			}
			offset = next
		}
	}, nil
}

// Pack encodes args against s's format and returns the packed bytes.
func (s *Struct) Pack(args []value.Value, refdata ...int64) ([]byte, error) {
	buf := pool.Get()
	defer pool.Put(buf)

	if err := pack.Run(s.tree, args, refdata, s.defaultOrder, buf); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())

	return out, nil
}

// PackInto encodes args against s's format directly into buf at offset,
// failing with errs.ErrBufferTooSmall if buf cannot hold the result
// without growing.
func (s *Struct) PackInto(buf []byte, offset int, args []value.Value, refdata ...int64) error {
	size, err := s.CalcSize(refdata...)
	if err == nil {
		if offset+size > len(buf) {
			return errs.NewDataError(s.tree.Format, offset, errs.ErrBufferTooSmall)
		}
	}

	bb := pool.Get()
	defer pool.Put(bb)

	if err := pack.Run(s.tree, args, refdata, s.defaultOrder, bb); err != nil {
		return err
	}

	if offset+bb.Len() > len(buf) {
		return errs.NewDataError(s.tree.Format, offset, errs.ErrBufferTooSmall)
	}

	copy(buf[offset:], bb.Bytes())

	return nil
}

// PackFile encodes args against s's format and writes the result to w.
func (s *Struct) PackFile(w io.Writer, args []value.Value, refdata ...int64) error {
	buf := pool.Get()
	defer pool.Put(buf)

	if err := pack.Run(s.tree, args, refdata, s.defaultOrder, buf); err != nil {
		return err
	}

	_, err := buf.WriteTo(w)

	return err
}

// Concat builds a new Struct whose format is the concatenation of s and
// other's underlying token trees, with other's absolute references
// renumbered to account for s's element count and its external
// references renumbered to account for the refdata slots s's own
// external references already consume (§3's lifecycle/renumbering
// rule; §8 Law 4).
func (s *Struct) Concat(other *Struct) *Struct {
	offset := len(s.tree.Root)
	externalOffset := externalRefCount(s.tree.Root)
	shifted := make([]*token.Node, 0, len(s.tree.Root)+len(other.tree.Root))
	shifted = append(shifted, s.tree.Root...)

	for _, n := range other.tree.Root {
		shifted = append(shifted, renumberNode(n, offset, externalOffset))
	}

	tree := &token.Tree{
		Root:    shifted,
		Order:   s.tree.Order,
		HasMark: s.tree.HasMark,
		Format:  s.tree.Format + " " + other.tree.Format,
	}

	unsafe := s.unsafeRefs || other.unsafeRefs
	if err := analyzer.Analyze(tree, unsafe); err != nil {
		panic(fmt.Sprintf("rawpack: Concat produced an invalid format: %v", err))
	}

	return &Struct{tree: tree, unsafeRefs: unsafe, defaultOrder: s.defaultOrder}
}

// Repeat builds a new Struct equivalent to n back-to-back copies of s,
// with each copy's own absolute and external references renumbered to
// its own position in the flattened sequence and its own slice of
// refdata, respectively.
func (s *Struct) Repeat(n int) *Struct {
	nodes := make([]*token.Node, 0, len(s.tree.Root)*n)
	perCopyExternal := externalRefCount(s.tree.Root)
	offset, externalOffset := 0, 0
	for i := 0; i < n; i++ {
		for _, orig := range s.tree.Root {
			nodes = append(nodes, renumberNode(orig, offset, externalOffset))
		}
		offset += len(s.tree.Root)
		externalOffset += perCopyExternal
	}

	tree := &token.Tree{
		Root:    nodes,
		Order:   s.tree.Order,
		HasMark: s.tree.HasMark,
		Format:  fmt.Sprintf("%d*(%s)", n, s.tree.Format),
	}

	if err := analyzer.Analyze(tree, s.unsafeRefs); err != nil {
		panic(fmt.Sprintf("rawpack: Repeat produced an invalid format: %v", err))
	}

	return &Struct{tree: tree, unsafeRefs: s.unsafeRefs, defaultOrder: s.defaultOrder}
}

// renumberNode deep-copies n, shifting any absolute repeat reference by
// delta to account for nodes prepended ahead of it in the element-index
// space, and any external reference by externalDelta to account for
// refdata slots the prepended struct(s) already consume. Relative
// references count back from the referrer and need no shift.
// ElementIndex/Determinacy are reset so a subsequent Analyze recomputes
// them for the new layout.
func renumberNode(n *token.Node, delta, externalDelta int) *token.Node {
	repeat := n.Repeat
	switch repeat.Kind {
	case token.RepeatAbsolute:
		repeat.N += delta
	case token.RepeatExternal:
		repeat.N += externalDelta
	}

	var children []*token.Node
	if len(n.Children) > 0 {
		children = make([]*token.Node, len(n.Children))
		for i, c := range n.Children {
			// Child scopes are locally indexed for absolute/relative refs,
			// but external refs still address the same shared refdata, so
			// externalDelta still applies.
			children[i] = renumberNode(c, 0, externalDelta)
		}
	}

	return &token.Node{
		Kind:         n.Kind,
		Repeat:       repeat,
		Children:     children,
		Excerpt:      n.Excerpt,
		ElementIndex: -1,
	}
}

// externalRefCount returns how many distinct external-reference (#N)
// refdata slots nodes consumes: one more than the highest index used,
// recursing into group/iterator children since they draw from the same
// shared refdata as their parent scope. Returns 0 if nodes uses none.
func externalRefCount(nodes []*token.Node) int {
	count := 0
	for _, n := range nodes {
		if n.Repeat.Kind == token.RepeatExternal && n.Repeat.N+1 > count {
			count = n.Repeat.N + 1
		}
		if len(n.Children) > 0 {
			if c := externalRefCount(n.Children); c > count {
				count = c
			}
		}
	}

	return count
}

// --- Package-level convenience wrappers ---
//
// Each compiles its format string on every call; callers driving the
// same format repeatedly should use NewStruct instead.

// Unpack decodes data in full against format.
func Unpack(format string, data []byte, refdata ...int64) ([]value.Value, error) {
	s, err := NewStruct(format)
	if err != nil {
		return nil, err
	}

	return s.Unpack(data, refdata...)
}

// UnpackFrom decodes data against format starting at offset.
func UnpackFrom(format string, data []byte, offset int, refdata ...int64) ([]value.Value, int, error) {
	s, err := NewStruct(format)
	if err != nil {
		return nil, 0, err
	}

	return s.UnpackFrom(data, offset, refdata...)
}

// IterUnpack repeatedly decodes data against format.
func IterUnpack(format string, data []byte, refdata ...int64) (iter.Seq[[]value.Value], error) {
	s, err := NewStruct(format)
	if err != nil {
		return nil, err
	}

	return s.IterUnpack(data, refdata...)
}

// Pack encodes args against format.
func Pack(format string, args []value.Value, refdata ...int64) ([]byte, error) {
	s, err := NewStruct(format)
	if err != nil {
		return nil, err
	}

	return s.Pack(args, refdata...)
}

// PackInto encodes args against format directly into buf at offset.
func PackInto(format string, buf []byte, offset int, args []value.Value, refdata ...int64) error {
	s, err := NewStruct(format)
	if err != nil {
		return err
	}

	return s.PackInto(buf, offset, args, refdata...)
}

// PackFile encodes args against format and writes the result to w.
func PackFile(format string, w io.Writer, args []value.Value, refdata ...int64) error {
	s, err := NewStruct(format)
	if err != nil {
		return err
	}

	return s.PackFile(w, args, refdata...)
}

// CalcSize returns the encoded byte length of format.
func CalcSize(format string, refdata ...int64) (int, error) {
	s, err := NewStruct(format)
	if err != nil {
		return 0, err
	}

	return s.CalcSize(refdata...)
}

// Namer converts a decoded value tree into a caller-defined named
// representation (e.g. a struct literal or a map[string]any).
type Namer func(values []value.Value) (any, error)

// UnpackNamed decodes data against format and passes the result through
// namer, for callers who want field names rather than positional values.
func UnpackNamed(format string, data []byte, namer Namer, refdata ...int64) (any, error) {
	vals, err := Unpack(format, data, refdata...)
	if err != nil {
		return nil, err
	}

	return namer(vals)
}
