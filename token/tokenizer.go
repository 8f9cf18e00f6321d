package token

import (
	"strconv"

	"github.com/arloliu/rawpack/endian"
	"github.com/arloliu/rawpack/errs"
)

// Tokenize parses a format string into a root token list plus the
// byte-order mode its optional leading marker selected.
//
// The tokenizer only checks syntax: bracket matching, digit-repeat
// placement, and the "$ appears once, only at the top-level terminal
// position" rule. Reference range/safety and numeric-target checks are
// analyzer.Analyze's job.
func Tokenize(format string) (*Tree, error) {
	s := &scanner{src: format, format: format}

	s.skipSpace()
	if s.pos < len(s.src) {
		if engine, ok := endian.ResolveMark(s.src[s.pos]); ok {
			s.order = engine
			s.hasMark = true
			s.pos++
		}
	}

	root, err := s.parseScope(0, true)
	if err != nil {
		return nil, err
	}

	if err := checkEndPlacement(root, format); err != nil {
		return nil, err
	}

	return &Tree{Root: root, Order: s.order, HasMark: s.hasMark, Format: format}, nil
}

type scanner struct {
	src    string
	pos    int
	format string
	order  endian.EndianEngine
	hasMark bool
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// parseScope consumes nodes until it sees closeCh (or end of input, when
// closeCh == 0 for the root scope), returning the parsed children.
func (s *scanner) parseScope(closeCh byte, isRoot bool) ([]*Node, error) {
	var nodes []*Node

	for {
		s.skipSpace()

		if s.pos >= len(s.src) {
			if closeCh != 0 {
				return nil, s.formatErr(errs.ErrMismatchedBracket, s.tail(s.pos))
			}

			return nodes, nil
		}

		if s.src[s.pos] == closeCh && closeCh != 0 {
			s.pos++
			return nodes, nil
		}

		switch s.src[s.pos] {
		case ')', ']', '}':
			return nil, s.formatErr(errs.ErrMismatchedBracket, s.tail(s.pos))
		}

		node, err := s.parseElement(isRoot)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, node)
	}
}

// parseElement parses one optional repeat specifier followed by one
// scalar/special/structural element.
func (s *scanner) parseElement(isRoot bool) (*Node, error) {
	start := s.pos

	node, err := s.parseElementBody(isRoot, start)
	if err != nil {
		return nil, err
	}

	node.Excerpt = s.src[start:s.pos]

	return node, nil
}

func (s *scanner) parseElementBody(isRoot bool, start int) (*Node, error) {
	repeat, err := s.parseRepeat()
	if err != nil {
		return nil, err
	}

	s.skipSpace()
	if s.pos >= len(s.src) {
		return nil, s.formatErr(errs.ErrDanglingRepeat, s.tail(start))
	}

	ch := s.src[s.pos]

	switch ch {
	case '(':
		s.pos++
		children, err := s.parseScope(')', false)
		if err != nil {
			return nil, err
		}

		return newScope(KindGroup, repeat, children), nil

	case '[':
		s.pos++
		children, err := s.parseScope(']', false)
		if err != nil {
			return nil, err
		}

		return newScope(KindIter, repeat, children), nil

	case '{':
		if repeat.Kind != RepeatNone {
			return nil, s.formatErr(errs.ErrRepeatOnUnbounded, s.tail(start))
		}
		s.pos++
		children, err := s.parseScope('}', false)
		if err != nil {
			return nil, err
		}

		return newScope(KindUnbounded, Repeat{}, children), nil

	case 'n':
		if repeat.Kind != RepeatNone {
			return nil, s.formatErr(errs.ErrRepeatNotAllowed, s.tail(start))
		}
		s.pos++

		return newLeaf(KindNullString, Repeat{}), nil

	case '|':
		if repeat.Kind != RepeatNone {
			return nil, s.formatErr(errs.ErrRepeatNotAllowed, s.tail(start))
		}
		s.pos++

		return newLeaf(KindAlignBase, Repeat{}), nil

	case '$':
		if repeat.Kind != RepeatNone {
			return nil, s.formatErr(errs.ErrRepeatNotAllowed, s.tail(start))
		}
		if !isRoot {
			return nil, s.formatErr(errs.ErrMisplacedEnd, s.tail(start))
		}
		s.pos++

		return newLeaf(KindRest, Repeat{}), nil

	case 'a':
		if repeat.Kind == RepeatNone {
			return nil, s.formatErr(errs.ErrAlignMissingBoundary, s.tail(start))
		}
		s.pos++

		return newLeaf(KindAlign, repeat), nil

	default:
		kind, ok := kindForChar(ch)
		if !ok {
			return nil, s.formatErr(errs.ErrUnknownToken, s.tail(start))
		}
		s.pos++

		return newLeaf(kind, repeat), nil
	}
}

// parseRepeat parses an optional repeat specifier: a decimal literal, or a
// reference token (#N, /N, /pN). It returns RepeatNone if neither is
// present at the current position.
func (s *scanner) parseRepeat() (Repeat, error) {
	if s.pos >= len(s.src) {
		return Repeat{}, nil
	}

	switch {
	case isDigit(s.src[s.pos]):
		start := s.pos
		for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
			s.pos++
		}

		n, err := strconv.Atoi(s.src[start:s.pos])
		if err != nil {
			return Repeat{}, s.formatErr(errs.ErrUnknownToken, s.tail(start))
		}

		return Repeat{Kind: RepeatLiteral, N: n}, nil

	case s.src[s.pos] == '#':
		start := s.pos
		s.pos++
		n, err := s.parseUint(start)
		if err != nil {
			return Repeat{}, err
		}

		return Repeat{Kind: RepeatExternal, N: n}, nil

	case s.src[s.pos] == '/':
		start := s.pos
		s.pos++
		if s.pos < len(s.src) && s.src[s.pos] == 'p' {
			s.pos++
			n, err := s.parseUint(start)
			if err != nil {
				return Repeat{}, err
			}

			return Repeat{Kind: RepeatRelative, N: n}, nil
		}

		n, err := s.parseUint(start)
		if err != nil {
			return Repeat{}, err
		}

		return Repeat{Kind: RepeatAbsolute, N: n}, nil

	default:
		return Repeat{}, nil
	}
}

// parseUint parses the decimal digits following a reference marker
// ('#', '/', or '/p') already consumed by the caller. excerptStart anchors
// the error excerpt at the start of the whole reference token.
func (s *scanner) parseUint(excerptStart int) (int, error) {
	digitsStart := s.pos
	for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
		s.pos++
	}

	if s.pos == digitsStart {
		return 0, s.formatErr(errs.ErrUnknownToken, s.tail(excerptStart))
	}

	n, err := strconv.Atoi(s.src[digitsStart:s.pos])
	if err != nil {
		return 0, s.formatErr(errs.ErrUnknownToken, s.tail(excerptStart))
	}

	return n, nil
}

// tail returns a short excerpt of the format string starting at from, for
// error messages.
func (s *scanner) tail(from int) string {
	const maxExcerpt = 24
	end := min(from+maxExcerpt, len(s.src))
	if from >= len(s.src) {
		return ""
	}

	return s.src[from:end]
}

func (s *scanner) formatErr(sentinel error, excerpt string) error {
	return errs.NewFormatError(s.format, excerpt, sentinel)
}

// checkEndPlacement enforces that '$' occurs at most once and only as the
// last element of the root scope (nested occurrences are already rejected
// by parseElement's isRoot check).
func checkEndPlacement(root []*Node, format string) error {
	for i, n := range root {
		if n.Kind == KindRest && i != len(root)-1 {
			return errs.NewFormatError(format, "$", errs.ErrMisplacedEnd)
		}
	}

	return nil
}
