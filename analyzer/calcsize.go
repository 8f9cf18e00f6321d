package analyzer

import (
	"github.com/arloliu/rawpack/errs"
	"github.com/arloliu/rawpack/token"
)

// CalcSize returns the total encoded byte length of tree, which must
// already have been Analyze'd. It fails structurally if any node is
// data-dependent (n, $, {...}, an absolute/relative reference, or an
// alignment whose boundary an indeterminate value feeds), or if an
// external reference is present but refdata is nil.
func CalcSize(tree *token.Tree, refdata []int64) (int, error) {
	for _, n := range tree.Root {
		if Determinacy(n.Determinacy) == DataDependent {
			return 0, errs.NewFormatError(tree.Format, n.Excerpt, errs.ErrIndeterminateSize)
		}
	}

	return calcSizeScope(tree.Root, refdata, tree.Format)
}

// calcSizeScope returns the byte width of one pass through nodes,
// tracking the scope's alignment base as '|' tokens move it and padding
// the cursor up to each 'a' boundary measured from that base.
func calcSizeScope(nodes []*token.Node, refdata []int64, format string) (int, error) {
	base, cur := 0, 0

	for _, n := range nodes {
		switch n.Kind {
		case token.KindAlignBase:
			base = cur

			continue

		case token.KindAlign:
			boundary, err := resolveStaticRepeat(n, refdata, format)
			if err != nil {
				return 0, err
			}
			if boundary < 1 {
				boundary = 1
			}

			rel := cur - base
			pad := (boundary - rel%boundary) % boundary
			cur += pad

			continue
		}

		width, err := nodeWidth(n, refdata, format)
		if err != nil {
			return 0, err
		}

		cur += width
	}

	return cur, nil
}

// nodeWidth returns the total byte width n contributes, resolving its
// repeat count statically.
func nodeWidth(n *token.Node, refdata []int64, format string) (int, error) {
	count, err := resolveStaticRepeat(n, refdata, format)
	if err != nil {
		return 0, err
	}

	if n.Kind.IsScope() {
		one, err := calcSizeScope(n.Children, refdata, format)
		if err != nil {
			return 0, err
		}

		return one * count, nil
	}

	perValue := n.Kind.FixedWidth()
	if perValue == 0 {
		// KindByteString / KindHexString: the repeat count is itself the
		// byte length on the wire.
		perValue = 1
	}

	return perValue * count, nil
}

// resolveStaticRepeat resolves n's repeat specifier to a concrete count
// without any decoded data: RepeatNone counts as 1, literal counts are
// themselves, and external references are looked up in refdata.
// Absolute/relative references never reach here for a determinate tree
// (they're tagged DataDependent and rejected by CalcSize up front).
func resolveStaticRepeat(n *token.Node, refdata []int64, format string) (int, error) {
	switch n.Repeat.Kind {
	case token.RepeatNone:
		return 1, nil

	case token.RepeatLiteral:
		return n.Repeat.N, nil

	case token.RepeatExternal:
		if refdata == nil {
			return 0, errs.NewFormatError(format, n.Excerpt, errs.ErrIndeterminateSize)
		}
		if n.Repeat.N >= len(refdata) {
			return 0, errs.NewDataError(format, n.Repeat.N, errs.ErrReferenceRange)
		}

		return int(refdata[n.Repeat.N]), nil

	default:
		return 0, errs.NewFormatError(format, n.Excerpt, errs.ErrIndeterminateSize)
	}
}
