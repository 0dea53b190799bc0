package boundary

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/chazu/lamina/pkg/surface"
)

// ErrParse is wrapped by every ParseError.
var ErrParse = errors.New("boundary parse error")

// ParseError reports malformed boundary text. Pos is the 1-based byte column
// where the problem was detected.
type ParseError struct {
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("boundary: column %d: %s", e.Pos, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

type tokenKind int

const (
	tokRef tokenKind = iota
	tokUnion
	tokOpen
	tokClose
	tokComplement
	tokEOF
)

type token struct {
	kind tokenKind
	ref  surface.Ref
	pos  int // 1-based
}

func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ':':
			toks = append(toks, token{kind: tokUnion, pos: i + 1})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokOpen, pos: i + 1})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokClose, pos: i + 1})
			i++
		case c == '#':
			toks = append(toks, token{kind: tokComplement, pos: i + 1})
			i++
		case c == '-' || c == '+' || isDigit(c):
			start := i
			if c == '-' || c == '+' {
				i++
			}
			digits := i
			for i < len(text) && isDigit(text[i]) {
				i++
			}
			if i == digits {
				return nil, &ParseError{Pos: start + 1, Reason: fmt.Sprintf("sign %q not followed by digits", c)}
			}
			v, err := strconv.Atoi(text[start:i])
			if err != nil {
				return nil, &ParseError{Pos: start + 1, Reason: fmt.Sprintf("malformed number %q", text[start:i])}
			}
			if v == 0 {
				return nil, &ParseError{Pos: start + 1, Reason: "surface reference 0 is invalid"}
			}
			toks = append(toks, token{kind: tokRef, ref: surface.Ref(v), pos: start + 1})
		default:
			return nil, &ParseError{Pos: i + 1, Reason: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(text) + 1})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// Parse reads boundary text:
//
//	union  = inter { ":" inter }
//	inter  = factor { factor }
//	factor = ref | "(" union ")" | "#" "(" union ")"
//
// "#(...)" complements its group at parse time; no complement node is
// stored.
func Parse(text string) (Expr, error) {
	toks, err := lex(text)
	if err != nil {
		return Expr{}, err
	}
	if toks[0].kind == tokEOF {
		return Expr{}, &ParseError{Pos: 1, Reason: "empty expression"}
	}
	p := &parser{toks: toks}
	root, err := p.union()
	if err != nil {
		return Expr{}, err
	}
	if t := p.peek(); t.kind != tokEOF {
		if t.kind == tokClose {
			return Expr{}, &ParseError{Pos: t.pos, Reason: "unbalanced ')'"}
		}
		return Expr{}, &ParseError{Pos: t.pos, Reason: "unexpected token"}
	}
	return Expr{root: root}, nil
}

// MustParse is like Parse but panics on error. Intended for literals.
func MustParse(text string) Expr {
	e, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("boundary.MustParse(%q): %v", text, err))
	}
	return e
}

func (p *parser) union() (Node, error) {
	left, err := p.inter()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokUnion {
		p.next()
		right, err := p.inter()
		if err != nil {
			return nil, err
		}
		left = Or{L: left, R: right}
	}
	return left, nil
}

func (p *parser) inter() (Node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for startsFactor(p.peek().kind) {
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = And{L: left, R: right}
	}
	return left, nil
}

func startsFactor(k tokenKind) bool {
	return k == tokRef || k == tokOpen || k == tokComplement
}

func (p *parser) factor() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokRef:
		return Leaf{Ref: t.ref}, nil
	case tokOpen:
		return p.group(t)
	case tokComplement:
		open := p.next()
		if open.kind != tokOpen {
			return nil, &ParseError{Pos: open.pos, Reason: "'#' must be followed by '('"}
		}
		n, err := p.group(open)
		if err != nil {
			return nil, err
		}
		return complement(n), nil
	case tokEOF:
		return nil, &ParseError{Pos: t.pos, Reason: "unexpected end of expression"}
	case tokClose:
		return nil, &ParseError{Pos: t.pos, Reason: "empty group or unbalanced ')'"}
	default:
		return nil, &ParseError{Pos: t.pos, Reason: "expected surface reference or '('"}
	}
}

// group parses the body of a parenthesised group whose '(' is open.
func (p *parser) group(open token) (Node, error) {
	if p.peek().kind == tokClose {
		return nil, &ParseError{Pos: p.peek().pos, Reason: "empty group"}
	}
	n, err := p.union()
	if err != nil {
		return nil, err
	}
	if cl := p.next(); cl.kind != tokClose {
		return nil, &ParseError{Pos: open.pos, Reason: "unbalanced '(': missing ')'"}
	}
	return n, nil
}
