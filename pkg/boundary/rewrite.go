package boundary

import "github.com/chazu/lamina/pkg/surface"

// FindNodes returns every sub-tree at the given depth of the flattened tree.
// Level 0 is the root itself, level 1 the operands of the root chain, and so
// on. Leaves have no operands, so deeper levels under a leaf are empty.
func (e Expr) FindNodes(level int) []Node {
	if e.root == nil || level < 0 {
		return nil
	}
	current := []Node{e.root}
	for ; level > 0; level-- {
		var next []Node
		for _, n := range current {
			next = append(next, operands(n)...)
		}
		current = next
	}
	return current
}

// SubstituteSurface rewrites every leaf referring to from's surface. A leaf
// equal to from becomes to and a leaf equal to -from becomes -to, so the
// orientation from expressed is carried onto the replacement.
func (e Expr) SubstituteSurface(from, to surface.Ref) Expr {
	if e.root == nil || !from.Valid() || !to.Valid() {
		return e
	}
	return Expr{root: mapLeaves(e.root, func(r surface.Ref) surface.Ref {
		switch r {
		case from:
			return to
		case -from:
			return -to
		}
		return r
	})}
}

func mapLeaves(n Node, f func(surface.Ref) surface.Ref) Node {
	switch v := n.(type) {
	case Leaf:
		return Leaf{Ref: f(v.Ref)}
	case And:
		return And{L: mapLeaves(v.L, f), R: mapLeaves(v.R, f)}
	case Or:
		return Or{L: mapLeaves(v.L, f), R: mapLeaves(v.R, f)}
	}
	return n
}

// SubstituteSubtree replaces the first occurrence of pattern with
// replacement. An occurrence is a sub-tree equal to pattern, or, when pattern
// is an intersection (union) chain, a contiguous run of operands inside a
// longer intersection (union) chain. Operand order must match; no
// commutativity is assumed.
//
// Chains are searched operand by operand: a run starting at operand i is
// tried before descending into operand i. If nothing matches, e is returned
// unchanged with false.
func (e Expr) SubstituteSubtree(pattern, replacement Expr) (Expr, bool) {
	if e.root == nil || pattern.root == nil || replacement.root == nil {
		return e, false
	}
	n, ok := substitute(e.root, pattern.root, replacement.root)
	if !ok {
		return e, false
	}
	return Expr{root: n}, true
}

func substitute(n, pat, repl Node) (Node, bool) {
	if equalNodes(n, pat) {
		return repl, true
	}
	o := opOf(n)
	if o == opLeaf {
		return n, false
	}

	ops := operands(n)
	var run []Node
	if opOf(pat) == o {
		run = operands(pat)
	}
	for i := range ops {
		if len(run) > 1 && i+len(run) <= len(ops) && matchRun(ops[i:i+len(run)], run) {
			out := make([]Node, 0, len(ops)-len(run)+1)
			out = append(out, ops[:i]...)
			out = append(out, repl)
			out = append(out, ops[i+len(run):]...)
			return chain(o, out), true
		}
		if sub, ok := substitute(ops[i], pat, repl); ok {
			out := make([]Node, len(ops))
			copy(out, ops)
			out[i] = sub
			return chain(o, out), true
		}
	}
	return n, false
}

func matchRun(ops, run []Node) bool {
	for i := range run {
		if !equalNodes(ops[i], run[i]) {
			return false
		}
	}
	return true
}

// Complement returns the region's boolean negation: intersections become
// unions of complements and vice versa, and every leaf changes sign.
// Complementing twice yields a tree equal to the original.
func (e Expr) Complement() Expr {
	if e.root == nil {
		return e
	}
	return Expr{root: complement(e.root)}
}

func complement(n Node) Node {
	switch v := n.(type) {
	case Leaf:
		return Leaf{Ref: v.Ref.Neg()}
	case And:
		return Or{L: complement(v.L), R: complement(v.R)}
	case Or:
		return And{L: complement(v.L), R: complement(v.R)}
	}
	return n
}
