package token

import "github.com/arloliu/rawpack/endian"

// RepeatKind identifies how a node's repeat count is determined.
type RepeatKind uint8

const (
	// RepeatNone means no count was given; the element occurs once.
	RepeatNone RepeatKind = iota
	// RepeatLiteral means N is a literal decimal count from the format string.
	RepeatLiteral
	// RepeatExternal means N is an index into the caller-supplied refdata (#N).
	RepeatExternal
	// RepeatAbsolute means N is an absolute reference into the current scope (/N).
	RepeatAbsolute
	// RepeatRelative means N is an offset before the referrer in the current scope (/pN).
	RepeatRelative
)

func (k RepeatKind) String() string {
	switch k {
	case RepeatNone:
		return "None"
	case RepeatLiteral:
		return "Literal"
	case RepeatExternal:
		return "External"
	case RepeatAbsolute:
		return "Absolute"
	case RepeatRelative:
		return "Relative"
	default:
		return "Unknown"
	}
}

// Repeat is a node's repeat-count specifier: a literal integer, or a
// reference that must be resolved against refdata or a sibling value.
type Repeat struct {
	Kind RepeatKind
	N    int
}

// Literal builds a literal repeat specifier.
func Literal(n int) Repeat { return Repeat{Kind: RepeatLiteral, N: n} }

// IsReference reports whether the repeat must be resolved dynamically.
func (r Repeat) IsReference() bool {
	return r.Kind == RepeatExternal || r.Kind == RepeatAbsolute || r.Kind == RepeatRelative
}

// Node is one element of a scope: a leaf scalar/variable-length token, a
// structural control token (align/align-base/end), or a scope
// (group/iterator/unbounded iterator) with its own child Nodes.
//
// ElementIndex and Determinacy are filled in by the analyzer package, not
// by the tokenizer; a freshly tokenized Node has ElementIndex == -1.
type Node struct {
	Kind     Kind
	Repeat   Repeat  // meaningful for scalar/group/iter nodes and KindAlign (N = alignment boundary)
	Children []*Node // only for Kind.IsScope() nodes

	// Excerpt is the node's own sub-format text, for error messages.
	Excerpt string

	// ElementIndex is the 0-based index of this node's first value slot in
	// its scope: a literal-repeated plain scalar takes one slot per value,
	// a string or whole sub-structure takes one, and alignment/padding take
	// none (see analyzer.slotCount). Set by analyzer.Analyze; -1 until then.
	ElementIndex int

	// Determinacy is set by analyzer.Analyze; see analyzer.Determinacy.
	Determinacy uint8
}

// Tree is the tokenizer's output: the top-level scope plus the byte order
// the format string's prefix declared, if any.
type Tree struct {
	Root       []*Node
	Order      endian.EndianEngine // nil if the format carried no byte-order marker
	HasMark    bool
	Format     string // original format string, kept for error messages
}

// newLeaf builds a leaf node with ElementIndex unset.
func newLeaf(kind Kind, repeat Repeat) *Node {
	return &Node{Kind: kind, Repeat: repeat, ElementIndex: -1}
}

// newScope builds a scope node with ElementIndex unset.
func newScope(kind Kind, repeat Repeat, children []*Node) *Node {
	return &Node{Kind: kind, Repeat: repeat, Children: children, ElementIndex: -1}
}
