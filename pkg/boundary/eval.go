package boundary

import (
	"fmt"
	"slices"

	"github.com/chazu/lamina/pkg/surface"
	"gonum.org/v1/gonum/spatial/r3"
)

// Refs returns the leaf references in left-to-right order.
func (e Expr) Refs() []surface.Ref {
	var refs []surface.Ref
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Leaf:
			refs = append(refs, v.Ref)
		case And:
			walk(v.L)
			walk(v.R)
		case Or:
			walk(v.L)
			walk(v.R)
		}
	}
	if e.root != nil {
		walk(e.root)
	}
	return refs
}

// Surfaces returns the distinct surface numbers e refers to, ascending.
func (e Expr) Surfaces() []surface.Number {
	seen := make(map[surface.Number]bool)
	var nums []surface.Number
	for _, r := range e.Refs() {
		n := r.Number()
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)
	return nums
}

// resolveAll resolves every surface e refers to.
func (e Expr) resolveAll(res surface.Resolver) (map[surface.Number]surface.Surface, error) {
	nums := e.Surfaces()
	out := make(map[surface.Number]surface.Surface, len(nums))
	for _, n := range nums {
		s, err := res.Resolve(n)
		if err != nil {
			return nil, fmt.Errorf("boundary %q: %w", e.String(), err)
		}
		out[n] = s
	}
	return out, nil
}

// Render serializes e after checking that every reference resolves. Stale
// references are reported here rather than at construction time.
func (e Expr) Render(res surface.Resolver) (string, error) {
	if _, err := e.resolveAll(res); err != nil {
		return "", err
	}
	return e.String(), nil
}

// Evaluate reports whether p lies strictly inside the region. Points on any
// bounding surface of a leaf count as outside that leaf.
func (e Expr) Evaluate(res surface.Resolver, p r3.Vec) (bool, error) {
	if e.root == nil {
		return false, fmt.Errorf("boundary: evaluate empty expression")
	}
	surfs, err := e.resolveAll(res)
	if err != nil {
		return false, err
	}
	return contains(e.root, surfs, p), nil
}

func contains(n Node, surfs map[surface.Number]surface.Surface, p r3.Vec) bool {
	switch v := n.(type) {
	case Leaf:
		d := surfs[v.Ref.Number()].Sense(p)
		if v.Ref.Positive() {
			return d > 0
		}
		return d < 0
	case And:
		return contains(v.L, surfs, p) && contains(v.R, surfs, p)
	case Or:
		return contains(v.L, surfs, p) || contains(v.R, surfs, p)
	}
	return false
}
