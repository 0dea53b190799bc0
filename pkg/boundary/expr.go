// Package boundary implements cell boundary expressions: immutable boolean
// trees of signed surface references combined by intersection and union.
//
// Trees are never mutated after construction. Every rewriting operation
// (SubstituteSurface, SubstituteSubtree, Complement) returns a new Expr and
// may share untouched sub-trees with its input, which is safe because no
// Node can change once built.
//
// The textual form is the transport-code cell syntax: implicit intersection
// between whitespace-separated references, ':' for union (binding looser
// than intersection) and parentheses for grouping.
package boundary

import (
	"strconv"
	"strings"

	"github.com/chazu/lamina/pkg/surface"
)

// Node is a closed sum type over Leaf, And and Or.
type Node interface {
	node() // marker method restricting implementations to this package
}

// Leaf is a single signed surface reference.
type Leaf struct {
	Ref surface.Ref
}

// And is the intersection of two regions.
type And struct {
	L, R Node
}

// Or is the union of two regions.
type Or struct {
	L, R Node
}

func (Leaf) node() {}
func (And) node()  {}
func (Or) node()   {}

// Expr owns the root of a boundary tree. The zero Expr is empty.
type Expr struct {
	root Node
}

// New wraps an existing tree.
func New(root Node) Expr {
	return Expr{root: root}
}

// Ref returns the single-leaf expression for r.
func Ref(r surface.Ref) Expr {
	return Expr{root: Leaf{Ref: r}}
}

// Intersect conjoins the non-empty expressions left to right.
func Intersect(exprs ...Expr) Expr {
	return fold(opAnd, exprs)
}

// Unite joins the non-empty expressions left to right.
func Unite(exprs ...Expr) Expr {
	return fold(opOr, exprs)
}

func fold(o op, exprs []Expr) Expr {
	var nodes []Node
	for _, e := range exprs {
		if e.root != nil {
			nodes = append(nodes, e.root)
		}
	}
	if len(nodes) == 0 {
		return Expr{}
	}
	return Expr{root: chain(o, nodes)}
}

// Root returns the tree root, or nil for an empty expression.
func (e Expr) Root() Node { return e.root }

// IsEmpty reports whether e has no tree.
func (e Expr) IsEmpty() bool { return e.root == nil }

// String serializes e in card syntax. Parentheses are emitted only where they
// are needed to reproduce the exact tree shape on Parse.
func (e Expr) String() string {
	if e.root == nil {
		return ""
	}
	var b strings.Builder
	write(&b, e.root)
	return b.String()
}

func write(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case Leaf:
		b.WriteString(strconv.Itoa(int(v.Ref)))
	case And:
		writeOperand(b, v.L, parensAndLeft(v.L))
		b.WriteByte(' ')
		writeOperand(b, v.R, parensAndRight(v.R))
	case Or:
		writeOperand(b, v.L, false)
		b.WriteString(" : ")
		_, nested := v.R.(Or)
		writeOperand(b, v.R, nested)
	}
}

func parensAndLeft(n Node) bool {
	_, isOr := n.(Or)
	return isOr
}

func parensAndRight(n Node) bool {
	switch n.(type) {
	case Or, And:
		return true
	}
	return false
}

func writeOperand(b *strings.Builder, n Node, parens bool) {
	if parens {
		b.WriteByte('(')
	}
	write(b, n)
	if parens {
		b.WriteByte(')')
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Expr) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Expr) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ---------------------------------------------------------------------------
// Flattening and equality
// ---------------------------------------------------------------------------

type op int

const (
	opLeaf op = iota
	opAnd
	opOr
)

func opOf(n Node) op {
	switch n.(type) {
	case And:
		return opAnd
	case Or:
		return opOr
	}
	return opLeaf
}

// operands returns the operands of the chain rooted at n: nested nodes of the
// same operator are spliced, so "(1 2) 3" and "1 (2 3)" both yield [1 2 3].
// A leaf has no operands.
func operands(n Node) []Node {
	o := opOf(n)
	if o == opLeaf {
		return nil
	}
	var out []Node
	var collect func(Node)
	collect = func(m Node) {
		if opOf(m) != o {
			out = append(out, m)
			return
		}
		switch v := m.(type) {
		case And:
			collect(v.L)
			collect(v.R)
		case Or:
			collect(v.L)
			collect(v.R)
		}
	}
	collect(n)
	return out
}

// chain rebuilds a left-associated tree of operator o. Operands that are
// themselves chains of o are spliced in.
func chain(o op, nodes []Node) Node {
	var flat []Node
	for _, n := range nodes {
		if opOf(n) == o {
			flat = append(flat, operands(n)...)
		} else {
			flat = append(flat, n)
		}
	}
	acc := flat[0]
	for _, n := range flat[1:] {
		if o == opAnd {
			acc = And{L: acc, R: n}
		} else {
			acc = Or{L: acc, R: n}
		}
	}
	return acc
}

// equalNodes compares two trees after flattening same-operator chains.
// Operand order is significant.
func equalNodes(a, b Node) bool {
	oa, ob := opOf(a), opOf(b)
	if oa != ob {
		return false
	}
	if oa == opLeaf {
		return a.(Leaf).Ref == b.(Leaf).Ref
	}
	ka, kb := operands(a), operands(b)
	if len(ka) != len(kb) {
		return false
	}
	for i := range ka {
		if !equalNodes(ka[i], kb[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether e and other are structurally equal once nested
// intersection and union chains are flattened.
func (e Expr) Equal(other Expr) bool {
	if e.root == nil || other.root == nil {
		return e.root == nil && other.root == nil
	}
	return equalNodes(e.root, other.root)
}
