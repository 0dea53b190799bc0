package layer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/surface"
)

// PairRule ties a primary surface to the secondary surface it is
// interpolated towards. The signs of Primary and Secondary are the senses in
// which the templates refer to them.
type PairRule struct {
	Primary   surface.Ref  `json:"primary"`
	Secondary surface.Ref  `json:"secondary"`
	Kind      surface.Kind `json:"kind"`
}

func (r PairRule) String() string {
	return fmt.Sprintf("%s %d->%d", r.Kind, r.Primary, r.Secondary)
}

// Synthesizer advances a set of pair rules together across a fraction
// partition and builds the boundary of the slab between two fractions.
//
// The inner template names each rule's Primary and bounds the slab on the
// primary side; the outer template names each rule's Secondary and bounds it
// on the secondary side. Their conjunction at the original surfaces is the
// pattern that must occur in a cell for the synthesizer to apply.
type Synthesizer struct {
	reg   surface.Registrar
	rules []PairRule
	inner boundary.Expr
	outer boundary.Expr
	tol   float64

	mu   sync.Mutex
	memo map[float64][]surface.Number
}

// SynthOption configures a Synthesizer.
type SynthOption func(*Synthesizer)

// SynthTolerance sets the tolerance Check and Advance use. Non-positive
// values keep surface.Tolerance.
func SynthTolerance(tol float64) SynthOption {
	return func(s *Synthesizer) {
		if tol > 0 {
			s.tol = tol
		}
	}
}

// NewSynthesizer checks that the rules are well formed and that each
// template mentions the surfaces it is meant to carry. Geometric
// compatibility is checked by Check, which needs the registry's surfaces.
func NewSynthesizer(reg surface.Registrar, rules []PairRule, inner, outer boundary.Expr, opts ...SynthOption) (*Synthesizer, error) {
	if reg == nil {
		return nil, errors.New("synthesizer: nil registry")
	}
	if len(rules) == 0 {
		return nil, errors.New("synthesizer: no pair rules")
	}
	if inner.IsEmpty() || outer.IsEmpty() {
		return nil, errors.New("synthesizer: empty template")
	}
	for i, r := range rules {
		if !r.Primary.Valid() || !r.Secondary.Valid() {
			return nil, fmt.Errorf("synthesizer: pair %d: invalid reference in %s", i, r)
		}
		if r.Primary.Number() == r.Secondary.Number() {
			return nil, fmt.Errorf("synthesizer: pair %d: primary and secondary are the same surface", i)
		}
		if !mentions(inner, r.Primary.Number()) {
			return nil, fmt.Errorf("synthesizer: pair %d: inner template %q does not mention surface %d",
				i, inner, r.Primary.Number())
		}
		if !mentions(outer, r.Secondary.Number()) {
			return nil, fmt.Errorf("synthesizer: pair %d: outer template %q does not mention surface %d",
				i, outer, r.Secondary.Number())
		}
	}
	s := &Synthesizer{
		reg:   reg,
		rules: append([]PairRule(nil), rules...),
		inner: inner,
		outer: outer,
		tol:   surface.Tolerance,
		memo:  make(map[float64][]surface.Number),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func mentions(e boundary.Expr, n surface.Number) bool {
	for _, m := range e.Surfaces() {
		if m == n {
			return true
		}
	}
	return false
}

// Rules returns a copy of the pair rules.
func (s *Synthesizer) Rules() []PairRule {
	return append([]PairRule(nil), s.rules...)
}

// Check resolves every rule and verifies that the surfaces match the
// declared kind and can be interpolated. It registers nothing. The returned
// index is the failing rule, or -1.
func (s *Synthesizer) Check() (int, error) {
	return s.check(s.tol)
}

func (s *Synthesizer) check(tol float64) (int, error) {
	for i, r := range s.rules {
		p, err := s.reg.Resolve(r.Primary.Number())
		if err != nil {
			return i, err
		}
		q, err := s.reg.Resolve(r.Secondary.Number())
		if err != nil {
			return i, err
		}
		if p.Kind() != r.Kind || q.Kind() != r.Kind {
			return i, &surface.IncompatibleError{
				Primary:   p.Kind(),
				Secondary: q.Kind(),
				Reason:    fmt.Sprintf("rule declares %s", r.Kind),
			}
		}
		if err := surface.Compatible(p, q, tol); err != nil {
			return i, err
		}
	}
	return -1, nil
}

// Primaries returns the primary surface numbers in rule order.
func (s *Synthesizer) Primaries() []surface.Number {
	out := make([]surface.Number, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Primary.Number()
	}
	return out
}

// Secondaries returns the secondary surface numbers in rule order.
func (s *Synthesizer) Secondaries() []surface.Number {
	out := make([]surface.Number, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Secondary.Number()
	}
	return out
}

// Advance returns one surface per rule at fraction f. At 0 and 1 the
// primaries and secondaries are returned as they are. Any other fraction is
// interpolated and registered once; later calls with the same fraction
// return the same numbers.
func (s *Synthesizer) Advance(f float64) ([]surface.Number, error) {
	nums, _, err := s.advance(f, s.tol)
	return nums, err
}

// advance also reports the failing rule index, or -1.
func (s *Synthesizer) advance(f, tol float64) ([]surface.Number, int, error) {
	switch {
	case f == 0:
		return s.Primaries(), -1, nil
	case f == 1:
		return s.Secondaries(), -1, nil
	case !(f > 0 && f < 1):
		return nil, -1, fmt.Errorf("%w: advance to %g", ErrOrder, f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if nums, ok := s.memo[f]; ok {
		return append([]surface.Number(nil), nums...), -1, nil
	}

	// Interpolate everything before registering anything, so a bad rule
	// leaves no partial set behind.
	surfs := make([]surface.Surface, len(s.rules))
	for i, r := range s.rules {
		p, err := s.reg.Resolve(r.Primary.Number())
		if err != nil {
			return nil, i, err
		}
		q, err := s.reg.Resolve(r.Secondary.Number())
		if err != nil {
			return nil, i, err
		}
		surfs[i], err = surface.Interpolate(p, q, f, tol)
		if err != nil {
			return nil, i, err
		}
	}

	nums := make([]surface.Number, len(surfs))
	for i, ns := range surfs {
		n, err := s.reg.Register(ns)
		if err != nil {
			return nil, i, fmt.Errorf("register surface at fraction %g: %w", f, err)
		}
		nums[i] = n
	}
	s.memo[f] = nums
	return append([]surface.Number(nil), nums...), -1, nil
}

// BoundaryFor returns the slab between the inner surfaces low and the outer
// surfaces high, one number per rule: the inner template with each primary
// replaced by low[i], conjoined with the outer template with each secondary
// replaced by high[i]. Senses carry over from the rules.
func (s *Synthesizer) BoundaryFor(low, high []surface.Number) (boundary.Expr, error) {
	if len(low) != len(s.rules) || len(high) != len(s.rules) {
		return boundary.Expr{}, fmt.Errorf("%w: %d rules, %d inner and %d outer surfaces",
			ErrCountMismatch, len(s.rules), len(low), len(high))
	}
	inner, outer := s.inner, s.outer
	for i, r := range s.rules {
		inner = inner.SubstituteSurface(r.Primary, withSense(low[i], r.Primary))
		outer = outer.SubstituteSurface(r.Secondary, withSense(high[i], r.Secondary))
	}
	return boundary.Intersect(inner, outer), nil
}

// Pattern is the slab between the original primaries and secondaries: the
// sub-expression a cell must contain for this synthesizer to divide it.
func (s *Synthesizer) Pattern() boundary.Expr {
	e, _ := s.BoundaryFor(s.Primaries(), s.Secondaries())
	return e
}

func withSense(n surface.Number, like surface.Ref) surface.Ref {
	if like.Positive() {
		return surface.Ref(n)
	}
	return -surface.Ref(n)
}
