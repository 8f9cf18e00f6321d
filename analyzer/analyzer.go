// Package analyzer implements the reference analyzer and size oracle: the
// two passes that turn a raw token.Tree into the annotated tree the
// unpack/pack engines drive.
//
// Analyze mutates the tree's nodes in place (ElementIndex, Determinacy)
// rather than building a second tree type, since the token tree already
// carries the fields an annotation pass needs to fill in.
package analyzer

import (
	"github.com/arloliu/rawpack/errs"
	"github.com/arloliu/rawpack/token"
)

// Determinacy classifies how knowable a node's encoded size is.
type Determinacy uint8

const (
	// Fixed means the size never depends on refdata or decoded bytes.
	Fixed Determinacy = iota + 1
	// External means the size is fixed once refdata is known.
	External
	// DataDependent means the size can only be known by actually decoding.
	DataDependent
)

func (d Determinacy) String() string {
	switch d {
	case Fixed:
		return "Fixed"
	case External:
		return "External"
	case DataDependent:
		return "DataDependent"
	default:
		return "Unknown"
	}
}

func maxDeterminacy(a, b Determinacy) Determinacy {
	if b > a {
		return b
	}

	return a
}

// Analyze runs the indexing and validation passes over tree, then tags
// every node's Determinacy. unsafeReferences relaxes the safe-mode
// determinate-span check from §4.C's validation pass.
//
// Analyze mutates tree's nodes and returns the first error encountered; a
// tree that fails Analyze must not be passed to CalcSize or the
// unpack/pack engines.
func Analyze(tree *token.Tree, unsafeReferences bool) error {
	indexScope(tree.Root)

	if err := validateScope(tree.Root, unsafeReferences, tree.Format); err != nil {
		return err
	}

	for _, n := range tree.Root {
		tagDeterminacy(n)
	}

	return nil
}

// slotCount returns how many scope-local element-index slots n occupies.
// A kind whose Kind.PerRepeatValue() is true occupies one slot per
// produced value (a literal repeat of k is k slots; a reference-driven
// repeat's slot count isn't known until decode, so it's pinned to one
// slot for the purpose of numbering the siblings that follow it — later
// siblings referencing into such a span are the case §4.C's safe mode
// exists to reject; see hasIndeterminateShape). Alignment markers and
// padding produce no value at all and occupy no slot.
func slotCount(n *token.Node) int {
	switch n.Kind {
	case token.KindAlign, token.KindAlignBase, token.KindPad:
		return 0
	}

	if !n.Kind.PerRepeatValue() {
		return 1
	}

	if n.Repeat.Kind == token.RepeatLiteral {
		return n.Repeat.N
	}

	return 1
}

// indexScope assigns each node in nodes its 0-based ElementIndex within
// that scope (the index of its first slot; see slotCount), recursing
// into child scopes.
func indexScope(nodes []*token.Node) {
	idx := 0
	for _, n := range nodes {
		n.ElementIndex = idx
		idx += slotCount(n)

		if n.Kind.IsScope() {
			indexScope(n.Children)
		}
	}
}

// validateScope checks every reference-driven repeat in nodes, then
// recurses into child scopes. nodes must already be indexed.
func validateScope(nodes []*token.Node, unsafe bool, format string) error {
	for _, n := range nodes {
		if n.Repeat.IsReference() {
			if err := validateReference(nodes, n, unsafe, format); err != nil {
				return err
			}
		}

		if n.Kind.IsScope() {
			if err := validateScope(n.Children, unsafe, format); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateReference(scope []*token.Node, referrer *token.Node, unsafe bool, format string) error {
	switch referrer.Repeat.Kind {
	case token.RepeatExternal:
		if referrer.Repeat.N < 0 {
			return errs.NewFormatError(format, referrer.Excerpt, errs.ErrReferenceRange)
		}

		return nil

	case token.RepeatAbsolute:
		n := referrer.Repeat.N
		if n < 0 || n >= referrer.ElementIndex {
			return errs.NewFormatError(format, referrer.Excerpt, errs.ErrReferenceRange)
		}

		return checkReferenceTarget(scope, n, referrer, unsafe, format)

	case token.RepeatRelative:
		n := referrer.Repeat.N
		target := referrer.ElementIndex - n
		if n < 1 || target < 0 {
			return errs.NewFormatError(format, referrer.Excerpt, errs.ErrReferenceRange)
		}

		return checkReferenceTarget(scope, target, referrer, unsafe, format)

	default:
		return nil
	}
}

// checkReferenceTarget verifies the referenced sibling is a numeric
// scalar and, in safe mode, that every sibling whose slot range overlaps
// [targetIndex, referrer's start) has a determinate shape.
func checkReferenceTarget(scope []*token.Node, targetIndex int, referrer *token.Node, unsafe bool, format string) error {
	target := findNodeContaining(scope, targetIndex)
	if target == nil || !target.Kind.IsNumericScalar() {
		return errs.NewFormatError(format, referrer.Excerpt, errs.ErrReferenceNotNumeric)
	}

	if unsafe {
		return nil
	}

	for _, n := range scope {
		start, end := n.ElementIndex, n.ElementIndex+slotCount(n)
		if end <= targetIndex || start >= referrer.ElementIndex {
			continue
		}

		if hasIndeterminateShape(n) {
			return errs.NewFormatError(format, referrer.Excerpt, errs.ErrUnsafeReference)
		}
	}

	return nil
}

func findNodeContaining(scope []*token.Node, idx int) *token.Node {
	for _, n := range scope {
		start, end := n.ElementIndex, n.ElementIndex+slotCount(n)
		if idx >= start && idx < end {
			return n
		}
	}

	return nil
}

// hasIndeterminateShape reports whether n has data-dependent shape for
// §4.C's safe-mode span check: an unbounded iterator, an end-of-stream
// marker, a null-terminated string, a scalar whose own repeat is an
// absolute/relative reference (its slot count isn't known until a
// sibling value is decoded, unlike a literal or external-refdata
// repeat), or a sub-structure containing any of these.
func hasIndeterminateShape(n *token.Node) bool {
	switch n.Kind {
	case token.KindUnbounded, token.KindRest, token.KindNullString:
		return true
	}

	if n.Kind.PerRepeatValue() &&
		(n.Repeat.Kind == token.RepeatAbsolute || n.Repeat.Kind == token.RepeatRelative) {
		return true
	}

	if n.Kind.IsScope() {
		for _, c := range n.Children {
			if hasIndeterminateShape(c) {
				return true
			}
		}
	}

	return false
}

// tagDeterminacy computes and stores n.Determinacy, recursing into child
// scopes first so a scope's Determinacy reflects its least-determinate
// child.
func tagDeterminacy(n *token.Node) Determinacy {
	d := Fixed

	switch n.Kind {
	case token.KindNullString, token.KindRest, token.KindUnbounded:
		d = DataDependent
	}

	switch n.Repeat.Kind {
	case token.RepeatAbsolute, token.RepeatRelative:
		d = maxDeterminacy(d, DataDependent)
	case token.RepeatExternal:
		d = maxDeterminacy(d, External)
	}

	if n.Kind.IsScope() {
		for _, c := range n.Children {
			d = maxDeterminacy(d, tagDeterminacy(c))
		}
	}

	n.Determinacy = uint8(d)

	return d
}
