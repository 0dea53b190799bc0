package engine

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/config"
	"github.com/chazu/lamina/pkg/model"
	"github.com/chazu/lamina/pkg/surface"
	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(cell box :material 1)`,
			expect: `(cell box "__kw_material" 1)`,
		},
		{
			name:   "multiple keywords",
			input:  `(rpp :min lo :max hi)`,
			expect: `(rpp "__kw_min" lo "__kw_max" hi)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "keyword in backtick string preserved",
			input:  "`raw :keyword`",
			expect: "`raw :keyword`",
		},
		{
			name:   "escaped quote in string",
			input:  `"a \" :b" :c`,
			expect: `"a \" :b" "__kw_c"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(def outer-wall (cell box))`,
			expect: `(def outer_wall (cell box))`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative number preserved",
			input:  `(vec3 -1 -2 -3)`,
			expect: `(vec3 -1 -2 -3)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  "; simple comment\n(+ 1 2)",
			expect: "// simple comment\n(+ 1 2)",
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:preset :outer-wall`,
			expect: `"__kw_preset" "__kw_outer-wall"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mustEvaluate(t *testing.T, eng *Engine, source string) *model.Model {
	t.Helper()
	m, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if m == nil {
		t.Fatal("expected non-nil model")
	}
	return m
}

func cards(t *testing.T, m *model.Model) []string {
	t.Helper()
	c, err := m.CellCards()
	if err != nil {
		t.Fatalf("CellCards: %v", err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Layering scripts
// ---------------------------------------------------------------------------

func TestRppLayers(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(def box (rpp :min (vec3 -1 -1 -1) :max (vec3 1 1 1)))
(def body (cell box :material 1 :density 2.7))
(cell (complement box))
(def along-x (synthesizer (pair (ref box 0) (ref box 1))))
(layers body along-x :fractions (list 0.6 0.8) :materials (list 4 5 6))
`
	m := mustEvaluate(t, eng, source)

	box := boundary.MustParse("1 -2 3 -4 5 -6")
	want := []string{
		"2 0 " + box.Complement().String(),
		"3 4 2.7 1 -7 3 -4 5 -6",
		"4 5 2.7 7 -8 3 -4 5 -6",
		"5 6 2.7 8 -2 3 -4 5 -6",
	}
	if diff := cmp.Diff(want, cards(t, m)); diff != "" {
		t.Errorf("cell cards mismatch (-want +got):\n%s", diff)
	}

	for n, x := range map[surface.Number]float64{7: 0.2, 8: 0.6} {
		s, err := m.Surfaces.Resolve(n)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", n, err)
		}
		if off := s.(surface.Plane).Offset(); math.Abs(off-x) > 1e-12 {
			t.Errorf("surface %d offset = %g, want %g", n, off, x)
		}
	}
}

func TestCylindricalShell(t *testing.T) {
	eng := NewEngine(nil)

	source := `
; a tube wall between radius 1 and 3, four units tall
(def inner (cylinder :axis (vec3 0 0 1) :radius 1))
(def outer (cylinder :axis (vec3 0 0 1) :radius 3))
(def bottom (plane :point (vec3 0 0 0) :normal (vec3 0 0 1)))
(def top (plane :normal (vec3 0 0 1) :offset 4))
(def wall (cell (intersect (outside inner) (inside outer) (outside bottom) (inside top)) :material 2))
(layers wall (synthesizer (pair (outside inner) (inside outer))) :fractions (list 0.5) :materials (list 7 8))
`
	m := mustEvaluate(t, eng, source)

	want := []string{"2 7 0 1 -5 3 -4", "3 8 0 5 -2 3 -4"}
	if diff := cmp.Diff(want, cards(t, m)); diff != "" {
		t.Errorf("cell cards mismatch (-want +got):\n%s", diff)
	}
	mid, err := m.Surfaces.Resolve(5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r := mid.(surface.Cylinder).Radius; math.Abs(r-2) > 1e-12 {
		t.Errorf("interpolated radius = %g, want 2", r)
	}
	top, _ := m.Surfaces.Resolve(4)
	if off := top.(surface.Plane).Offset(); off != 4 {
		t.Errorf("top offset = %g, want 4", off)
	}
}

func TestRccThicknesses(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(def rod (rcc :base (vec3 0 0 0) :height (vec3 0 0 4) :radius 1))
(def c (cell rod :material 3 :density 1))
(layers c (synthesizer (pair (ref rod 1) (ref rod 2))) :thicknesses (list 1 3) :materials (list 3 4) :densities (list 1 0.5))
`
	m := mustEvaluate(t, eng, source)

	want := []string{"2 3 1 -1 2 -4", "3 4 0.5 -1 4 -3"}
	if diff := cmp.Diff(want, cards(t, m)); diff != "" {
		t.Errorf("cell cards mismatch (-want +got):\n%s", diff)
	}
	s, _ := m.Surfaces.Resolve(4)
	if off := s.(surface.Plane).Offset(); math.Abs(off-1) > 1e-12 {
		t.Errorf("interpolated plane offset = %g, want 1", off)
	}
}

func TestLayersUniform(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(def box (rpp :min (vec3 0 0 0) :max (vec3 3 1 1)))
(def c (cell box :material 1))
(def layered (layers c (synthesizer (pair (ref box 0) (ref box 1))) :uniform 3 :materials (list 1 2 3)))
`
	m := mustEvaluate(t, eng, source)
	if got := len(cards(t, m)); got != 3 {
		t.Fatalf("got %d cells, want 3", got)
	}
	for n, x := range map[surface.Number]float64{7: 1, 8: 2} {
		s, _ := m.Surfaces.Resolve(n)
		if off := s.(surface.Plane).Offset(); math.Abs(off-x) > 1e-12 {
			t.Errorf("surface %d offset = %g, want %g", n, off, x)
		}
	}
}

func TestLayersPreset(t *testing.T) {
	cfg := config.Default()
	cfg.Layers = map[string]config.LayerPreset{
		"outer-wall": {Thicknesses: []float64{1, 1}, Materials: []int{7, 8}, Densities: []float64{1.1, 2.2}},
	}
	eng := NewEngine(cfg)

	source := `
(def box (rpp :min (vec3 0 0 0) :max (vec3 2 1 1)))
(def c (cell box :material 1))
(layers c (synthesizer (pair (ref box 0) (ref box 1))) :preset :outer-wall)
`
	m := mustEvaluate(t, eng, source)
	want := []string{"2 7 1.1 1 -7 3 -4 5 -6", "3 8 2.2 7 -2 3 -4 5 -6"}
	if diff := cmp.Diff(want, cards(t, m)); diff != "" {
		t.Errorf("cell cards mismatch (-want +got):\n%s", diff)
	}
}

// Two boxes forming an L, each layered through its own pair of planes by
// one combined call.
func TestLayersMultipleSynthesizers(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(def x1 (plane :normal (vec3 1 0 0) :offset -1))
(def x2 (plane :normal (vec3 1 0 0) :offset 1))
(def y1 (plane :normal (vec3 0 1 0) :offset 0))
(def y2 (plane :normal (vec3 0 1 0) :offset 1))
(def x3 (plane :normal (vec3 1 0 0) :offset -1))
(def x4 (plane :normal (vec3 1 0 0) :offset 3))
(def y3 (plane :normal (vec3 0 1 0) :offset 2))
(def l (cell "1 -2 3 -4 : 5 -6 4 -7" :material 1))
(layers l
  (synthesizer (pair x1 (inside x2)))
  (synthesizer (pair x3 (inside x4)))
  :fractions (list 0.5) :materials (list 2 3))
`
	m := mustEvaluate(t, eng, source)
	want := []string{"2 2 0 1 -8 3 -4 : 5 -9 4 -7", "3 3 0 8 -2 3 -4 : 9 -6 4 -7"}
	if diff := cmp.Diff(want, cards(t, m)); diff != "" {
		t.Errorf("cell cards mismatch (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Surfaces and regions
// ---------------------------------------------------------------------------

func TestSurfaceBuiltins(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(def r 2)
(cylinder :point (vec3 1 0 0) :axis (vec3 0 0 2) :radius (* r 1.5))
(cone :apex (vec3 0 0 1) :axis (vec3 0 0 1) :angle 45)
`
	m := mustEvaluate(t, eng, source)
	if m.Surfaces.Len() != 2 {
		t.Fatalf("got %d surfaces, want 2", m.Surfaces.Len())
	}

	s1, _ := m.Surfaces.Resolve(1)
	cyl, ok := s1.(surface.Cylinder)
	if !ok {
		t.Fatalf("surface 1 is %T, want Cylinder", s1)
	}
	if cyl.Radius != 3 || cyl.AxisDir.Z != 1 {
		t.Errorf("cylinder = %+v, want radius 3 and unit axis", cyl)
	}

	s2, _ := m.Surfaces.Resolve(2)
	cone, ok := s2.(surface.Cone)
	if !ok {
		t.Fatalf("surface 2 is %T, want Cone", s2)
	}
	if math.Abs(cone.HalfAngle-math.Pi/4) > 1e-12 {
		t.Errorf("cone half-angle = %g, want pi/4", cone.HalfAngle)
	}
}

func TestRegionBuiltins(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(def a (plane :normal (vec3 1 0 0) :offset 0))
(def b (plane :normal (vec3 0 1 0) :offset 0))
(def c (plane :normal (vec3 0 0 1) :offset 0))
(cell (intersect (outside a) (unite (inside b) (outside c))) :material 1)
(cell (region "-1 (2 : -3)"))
`
	m := mustEvaluate(t, eng, source)
	want := []string{"1 1 0 1 (-2 : 3)", "2 0 -1 (2 : -3)"}
	if diff := cmp.Diff(want, cards(t, m)); diff != "" {
		t.Errorf("cell cards mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomNumbering(t *testing.T) {
	cfg := config.Default()
	start, cellStart := 100, 10
	cfg.SurfaceStart = &start
	cfg.CellStart = &cellStart
	eng := NewEngine(cfg)

	m := mustEvaluate(t, eng, `(cell (rpp :min (vec3 0 0 0) :max (vec3 1 1 1)) :material 2)`)
	want := []string{"10 2 0 100 -101 102 -103 104 -105"}
	if diff := cmp.Diff(want, cards(t, m)); diff != "" {
		t.Errorf("cell cards mismatch (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestBuiltinErrors(t *testing.T) {
	const box = "(def box (rpp :min (vec3 -1 -1 -1) :max (vec3 1 1 1)))\n(def c (cell box :material 1))\n"
	const synth = "(def s (synthesizer (pair (ref box 0) (ref box 1))))\n"

	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{"vec3 arity", `(vec3 1 2)`, "exactly 3 arguments"},
		{"unknown keyword", `(plane :normal (vec3 1 0 0) :colour 3)`, "unknown keyword :colour"},
		{"plane without normal", `(plane :point (vec3 0 0 0))`, "requires :normal"},
		{"zero normal", `(plane :normal (vec3 0 0 0))`, "invalid surface"},
		{"point and offset", `(plane :normal (vec3 1 0 0) :point (vec3 0 0 0) :offset 1)`, "exclusive"},
		{"inverted rpp", `(rpp :min (vec3 1 0 0) :max (vec3 0 1 1))`, "not below"},
		{"rcc without height", `(rcc :radius 1)`, "non-zero :height"},
		{"bad region text", `(region "1 (2")`, "region"},
		{"unknown surface in cell", `(cell "1 -2" :material 1)`, "unknown surface"},
		{"ref out of range", box + `(ref box 6)`, "out of range"},
		{"pair of region", box + `(pair box (ref box 1))`, "single signed surface"},
		{"order", box + synth + `(layers c s :fractions (list 0.8 0.6) :materials (list 1 2 3))`, "not strictly increasing"},
		{"count mismatch", box + synth + `(layers c s :fractions (list 0.5) :materials (list 1))`, "count mismatch"},
		{"two partitions", box + synth + `(layers c s :fractions (list 0.5) :uniform 2 :materials (list 1 2))`, "exactly one of"},
		{"missing materials", box + synth + `(layers c s :uniform 2)`, ":materials is required"},
		{"unknown preset", box + synth + `(layers c s :preset :nope)`, "no layer preset"},
		{"layers on a region", box + synth + `(layers box s :uniform 2 :materials (list 1 2))`, "expected cell"},
		{
			"pattern not found",
			box + "(def other (rpp :min (vec3 0 0 0) :max (vec3 2 2 2)))\n" +
				`(layers c (synthesizer (pair (ref other 0) (ref other 1))) :uniform 2 :materials (list 1 2))`,
			"substitution pattern not found",
		},
	}

	eng := NewEngine(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, evalErrs, err := eng.Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if m != nil {
				t.Error("expected nil model on eval error")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected at least one eval error")
			}
			if !strings.Contains(evalErrs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", evalErrs[0].Message, tt.wantMsg)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Plain Lisp still works (regression)
// ---------------------------------------------------------------------------

func TestArithmeticStillWorks(t *testing.T) {
	eng := NewEngine(nil)
	m := mustEvaluate(t, eng, "(+ 1 2)")
	if m.Cells.Len() != 0 || m.Surfaces.Len() != 0 {
		t.Errorf("expected empty model, got %d cells and %d surfaces", m.Cells.Len(), m.Surfaces.Len())
	}
}
