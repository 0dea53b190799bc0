package layer

import (
	"errors"
	"testing"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/cell"
	"github.com/chazu/lamina/pkg/surface"
	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestAdvanceSentinelsRegisterNothing(t *testing.T) {
	f := newFixture(t, cell.NewStore())
	f.cube(t)
	s := f.xSynth(t)

	lo, err := s.Advance(0)
	if err != nil {
		t.Fatalf("Advance(0): %v", err)
	}
	hi, err := s.Advance(1)
	if err != nil {
		t.Fatalf("Advance(1): %v", err)
	}
	if diff := cmp.Diff([]surface.Number{1}, lo); diff != "" {
		t.Errorf("Advance(0) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]surface.Number{2}, hi); diff != "" {
		t.Errorf("Advance(1) mismatch (-want +got):\n%s", diff)
	}
	if f.reg.Len() != 6 {
		t.Errorf("sentinel advance registered surfaces: Len=%d", f.reg.Len())
	}
}

func TestAdvanceMemoizes(t *testing.T) {
	f := newFixture(t, cell.NewStore())
	f.cube(t)
	s := f.xSynth(t)

	first, err := s.Advance(0.25)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	again, err := s.Advance(0.25)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("second advance returned new surfaces (-first +again):\n%s", diff)
	}
	if f.reg.Len() != 7 {
		t.Errorf("registry Len = %d, want 7", f.reg.Len())
	}

	p, _ := f.reg.Resolve(first[0])
	if x := p.(surface.Plane).Point.X; !scalar.EqualWithinAbs(x, -0.5, 1e-12) {
		t.Errorf("plane at x=%g, want -0.5", x)
	}
}

func TestAdvanceRejectsOutOfRange(t *testing.T) {
	f := newFixture(t, cell.NewStore())
	f.cube(t)
	s := f.xSynth(t)
	for _, fr := range []float64{-0.1, 1.5} {
		if _, err := s.Advance(fr); !errors.Is(err, ErrOrder) {
			t.Errorf("Advance(%g): expected ErrOrder, got %v", fr, err)
		}
	}
}

func TestAdvanceIncompatibleRegistersNothing(t *testing.T) {
	f := newFixture(t, cell.NewStore())
	f.cube(t)
	s := f.synth(t, []PairRule{
		{Primary: 1, Secondary: -2, Kind: surface.KindPlane},
		{Primary: 3, Secondary: -2, Kind: surface.KindPlane},
	}, "1 3", "-2")

	if _, err := s.Advance(0.5); !errors.Is(err, surface.ErrIncompatiblePair) {
		t.Fatalf("expected ErrIncompatiblePair, got %v", err)
	}
	if f.reg.Len() != 6 {
		t.Errorf("partial advance registered surfaces: Len=%d", f.reg.Len())
	}
	if idx, err := s.Check(); idx != 1 || err == nil {
		t.Errorf("Check = %d, %v; want failing rule 1", idx, err)
	}
}

func TestBoundaryForMultipleRules(t *testing.T) {
	reg := surface.NewRegistry()
	s, err := NewSynthesizer(reg, []PairRule{
		{Primary: 1, Secondary: -2, Kind: surface.KindPlane},
		{Primary: -3, Secondary: 4, Kind: surface.KindCylinder},
	}, boundary.MustParse("1 : -3"), boundary.MustParse("-2 4"))
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}

	if got := s.Pattern().String(); got != "(1 : -3) -2 4" {
		t.Errorf("Pattern = %q", got)
	}
	slab, err := s.BoundaryFor([]surface.Number{7, 8}, []surface.Number{9, 10})
	if err != nil {
		t.Fatalf("BoundaryFor: %v", err)
	}
	if got := slab.String(); got != "(7 : -8) -9 10" {
		t.Errorf("BoundaryFor = %q", got)
	}
	if _, err := s.BoundaryFor([]surface.Number{7}, []surface.Number{9, 10}); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("expected ErrCountMismatch, got %v", err)
	}
}

func TestNewSynthesizerRejects(t *testing.T) {
	reg := surface.NewRegistry()
	one, minusTwo := boundary.MustParse("1"), boundary.MustParse("-2")
	rule := PairRule{Primary: 1, Secondary: -2, Kind: surface.KindPlane}

	tests := []struct {
		name         string
		reg          surface.Registrar
		rules        []PairRule
		inner, outer boundary.Expr
	}{
		{"nil registry", nil, []PairRule{rule}, one, minusTwo},
		{"no rules", reg, nil, one, minusTwo},
		{"empty template", reg, []PairRule{rule}, boundary.Expr{}, minusTwo},
		{"zero reference", reg, []PairRule{{Primary: 0, Secondary: -2}}, one, minusTwo},
		{"same surface", reg, []PairRule{{Primary: 1, Secondary: -1}}, one, boundary.MustParse("-1")},
		{"inner misses primary", reg, []PairRule{rule}, boundary.MustParse("5"), minusTwo},
		{"outer misses secondary", reg, []PairRule{rule}, one, boundary.MustParse("-5")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSynthesizer(tt.reg, tt.rules, tt.inner, tt.outer); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSynthTolerance(t *testing.T) {
	reg := surface.NewRegistry()
	reg.Register(surface.Plane{Point: r3.Vec{X: -1}, Normal: r3.Vec{X: 1}})
	reg.Register(surface.Plane{Point: r3.Vec{X: 1}, Normal: r3.Vec{X: 1, Y: 1e-3}})
	rules := []PairRule{{Primary: 1, Secondary: -2, Kind: surface.KindPlane}}
	inner, outer := boundary.MustParse("1"), boundary.MustParse("-2")

	strict, err := NewSynthesizer(reg, rules, inner, outer)
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	if _, err := strict.Advance(0.5); !errors.Is(err, surface.ErrIncompatiblePair) {
		t.Fatalf("default tolerance: expected ErrIncompatiblePair, got %v", err)
	}

	loose, err := NewSynthesizer(reg, rules, inner, outer, SynthTolerance(1e-3))
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	if idx, err := loose.Check(); err != nil {
		t.Fatalf("Check: rule %d: %v", idx, err)
	}
	nums, err := loose.Advance(0.5)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if len(nums) != 1 || nums[0] != 3 {
		t.Errorf("Advance = %v, want [3]", nums)
	}
}

func TestSynthesizerCone(t *testing.T) {
	reg := surface.NewRegistry()
	axis := r3.Vec{Z: 1}
	reg.Register(surface.Cone{AxisDir: axis, HalfAngle: 0.2})
	reg.Register(surface.Cone{AxisDir: axis, HalfAngle: 0.6})
	s, err := NewSynthesizer(reg, []PairRule{{Primary: 1, Secondary: -2, Kind: surface.KindCone}},
		boundary.MustParse("1"), boundary.MustParse("-2"))
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	nums, err := s.Advance(0.5)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	c, _ := reg.Resolve(nums[0])
	if a := c.(surface.Cone).HalfAngle; !scalar.EqualWithinAbs(a, 0.4, 1e-12) {
		t.Errorf("half-angle = %g, want 0.4", a)
	}
}
