package engine

import (
	"fmt"
	"math"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/cell"
	"github.com/chazu/lamina/pkg/layer"
	"github.com/chazu/lamina/pkg/model"
	"github.com/chazu/lamina/pkg/surface"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"
)

// builder carries the model a single evaluation populates.
type builder struct {
	m *model.Model
}

func (b *builder) surface(s surface.Surface) (*sexpSurface, error) {
	n, err := b.m.AddSurface(s)
	if err != nil {
		return nil, err
	}
	return &sexpSurface{n: n, kind: s.Kind()}, nil
}

// plane registers the plane through p with normal n.
func (b *builder) plane(p, n r3.Vec) (surface.Number, error) {
	s, err := b.surface(surface.Plane{Point: p, Normal: n})
	if err != nil {
		return 0, err
	}
	return s.n, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the lamina DSL into a zygomys environment. The
// builtins populate b.m as the program runs.
//
// Source must go through preprocessSource first so that :keyword tokens are
// recognizable.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (plane :point (vec3 0 0 1) :normal (vec3 0 0 1))
	// (plane :normal (vec3 1 0 0) :offset 2)
	// -----------------------------------------------------------------------
	env.AddFunction("plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only(name, "point", "normal", "offset"); err != nil {
			return zygo.SexpNull, err
		}
		normal, ok, err := pa.vec("normal")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("plane: normal: %w", err)
		}
		if !ok {
			return zygo.SexpNull, fmt.Errorf("plane requires :normal")
		}
		point, hasPoint, err := pa.vec("point")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("plane: point: %w", err)
		}
		if v, ok := pa.kw["offset"]; ok {
			if hasPoint {
				return zygo.SexpNull, fmt.Errorf("plane: :point and :offset are exclusive")
			}
			d, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("plane: offset: %w", err)
			}
			if l := r3.Norm(normal); l > 0 {
				point = r3.Scale(d/l, normal)
			}
		}
		s, err := b.surface(surface.Plane{Point: point, Normal: normal})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("plane: %w", err)
		}
		return s, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :point (vec3 0 0 0) :axis (vec3 0 0 1) :radius 2)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only(name, "point", "axis", "radius"); err != nil {
			return zygo.SexpNull, err
		}
		point, _, err := pa.vec("point")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: point: %w", err)
		}
		axis, ok, err := pa.vec("axis")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: axis: %w", err)
		}
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cylinder requires :axis")
		}
		r, err := pa.float("radius", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		s, err := b.surface(surface.Cylinder{AxisPoint: point, AxisDir: axis, Radius: r})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		return s, nil
	})

	// -----------------------------------------------------------------------
	// (cone :apex (vec3 0 0 0) :axis (vec3 0 0 1) :angle 30)
	//
	// The half-angle is given in degrees.
	// -----------------------------------------------------------------------
	env.AddFunction("cone", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only(name, "apex", "axis", "angle"); err != nil {
			return zygo.SexpNull, err
		}
		apex, _, err := pa.vec("apex")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cone: apex: %w", err)
		}
		axis, ok, err := pa.vec("axis")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cone: axis: %w", err)
		}
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cone requires :axis")
		}
		deg, err := pa.float("angle", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cone: angle: %w", err)
		}
		s, err := b.surface(surface.Cone{Apex: apex, AxisDir: axis, HalfAngle: deg * math.Pi / 180})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cone: %w", err)
		}
		return s, nil
	})

	// -----------------------------------------------------------------------
	// (rpp :min (vec3 -1 -1 -1) :max (vec3 1 1 1))
	//
	// Registers six axis planes in the order x-min, x-max, y-min, y-max,
	// z-min, z-max and returns the box between them.
	// -----------------------------------------------------------------------
	env.AddFunction("rpp", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only(name, "min", "max"); err != nil {
			return zygo.SexpNull, err
		}
		lo, okLo, err := pa.vec("min")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rpp: min: %w", err)
		}
		hi, okHi, err := pa.vec("max")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rpp: max: %w", err)
		}
		if !okLo || !okHi {
			return zygo.SexpNull, fmt.Errorf("rpp requires :min and :max")
		}
		if !(lo.X < hi.X && lo.Y < hi.Y && lo.Z < hi.Z) {
			return zygo.SexpNull, fmt.Errorf("rpp: min %v is not below max %v", lo, hi)
		}

		var parts []boundary.Expr
		for _, axis := range []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}} {
			low, err := b.plane(lo, axis)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rpp: %w", err)
			}
			high, err := b.plane(hi, axis)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rpp: %w", err)
			}
			parts = append(parts, boundary.Ref(surface.Ref(low)), boundary.Ref(-surface.Ref(high)))
		}
		return &sexpRegion{expr: boundary.Intersect(parts...)}, nil
	})

	// -----------------------------------------------------------------------
	// (rcc :base (vec3 0 0 0) :height (vec3 0 0 4) :radius 1)
	//
	// Registers the cylinder, then the base and top planes, and returns the
	// finite cylinder between them.
	// -----------------------------------------------------------------------
	env.AddFunction("rcc", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only(name, "base", "height", "radius"); err != nil {
			return zygo.SexpNull, err
		}
		base, _, err := pa.vec("base")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rcc: base: %w", err)
		}
		h, ok, err := pa.vec("height")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rcc: height: %w", err)
		}
		if !ok || r3.Norm(h) == 0 {
			return zygo.SexpNull, fmt.Errorf("rcc requires a non-zero :height")
		}
		r, err := pa.float("radius", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rcc: radius: %w", err)
		}

		side, err := b.surface(surface.Cylinder{AxisPoint: base, AxisDir: h, Radius: r})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rcc: %w", err)
		}
		bottom, err := b.plane(base, h)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rcc: %w", err)
		}
		top, err := b.plane(r3.Add(base, h), h)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rcc: %w", err)
		}
		return &sexpRegion{expr: boundary.Intersect(
			boundary.Ref(-surface.Ref(side.n)),
			boundary.Ref(surface.Ref(bottom)),
			boundary.Ref(-surface.Ref(top)),
		)}, nil
	})

	// -----------------------------------------------------------------------
	// (inside s) and (outside s): the negative and positive half-spaces.
	// -----------------------------------------------------------------------
	side := func(positive bool) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires exactly one surface", name)
			}
			s, err := toSurface(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			ref := surface.Ref(s.n)
			if !positive {
				ref = ref.Neg()
			}
			return &sexpRegion{expr: boundary.Ref(ref)}, nil
		}
	}
	env.AddFunction("inside", side(false))
	env.AddFunction("outside", side(true))

	// -----------------------------------------------------------------------
	// (region "1 -2 (3 : 4)")
	// -----------------------------------------------------------------------
	env.AddFunction("region", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("region requires exactly one boundary string")
		}
		e, err := toRegion(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("region: %w", err)
		}
		return &sexpRegion{expr: e}, nil
	})

	// -----------------------------------------------------------------------
	// (intersect r1 r2 ...) and (unite r1 r2 ...)
	// -----------------------------------------------------------------------
	combine := func(join func(...boundary.Expr) boundary.Expr) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) == 0 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least one region", name)
			}
			exprs := make([]boundary.Expr, len(args))
			for i, a := range args {
				e, err := toRegion(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", name, i+1, err)
				}
				exprs[i] = e
			}
			return &sexpRegion{expr: join(exprs...)}, nil
		}
	}
	env.AddFunction("intersect", combine(boundary.Intersect))
	env.AddFunction("unite", combine(boundary.Unite))

	// -----------------------------------------------------------------------
	// (complement r)
	// -----------------------------------------------------------------------
	env.AddFunction("complement", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("complement requires exactly one region")
		}
		e, err := toRegion(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("complement: %w", err)
		}
		return &sexpRegion{expr: e.Complement()}, nil
	})

	// -----------------------------------------------------------------------
	// (ref r 2): the third signed surface of r, left to right.
	// -----------------------------------------------------------------------
	env.AddFunction("ref", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("ref requires a region and an index")
		}
		e, err := toRegion(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ref: %w", err)
		}
		i, err := toInt(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ref: index: %w", err)
		}
		refs := e.Refs()
		if i < 0 || i >= len(refs) {
			return zygo.SexpNull, fmt.Errorf("ref: index %d out of range for %q", i, e.String())
		}
		return &sexpRegion{expr: boundary.Ref(refs[i])}, nil
	})

	// -----------------------------------------------------------------------
	// (cell region :material 1 :density 2.7)
	//
	// A missing material makes a void cell.
	// -----------------------------------------------------------------------
	env.AddFunction("cell", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only(name, "material", "density"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("cell requires exactly one region")
		}
		e, err := toRegion(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cell: %w", err)
		}
		mat := cell.Void
		if v, ok := pa.kw["material"]; ok {
			m, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cell: material: %w", err)
			}
			mat = cell.MaterialID(m)
		}
		density, err := pa.float("density", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cell: density: %w", err)
		}
		id, err := b.m.AddCell(mat, density, e)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cell: %w", err)
		}
		return &sexpCell{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (pair (outside inner) (inside outer))
	//
	// The kind is taken from the primary surface.
	// -----------------------------------------------------------------------
	env.AddFunction("pair", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("pair requires a primary and a secondary surface")
		}
		primary, err := toRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pair: primary: %w", err)
		}
		secondary, err := toRef(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pair: secondary: %w", err)
		}
		s, err := b.m.Surfaces.Resolve(primary.Number())
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pair: %w", err)
		}
		return &sexpPair{rule: layer.PairRule{Primary: primary, Secondary: secondary, Kind: s.Kind()}}, nil
	})

	// -----------------------------------------------------------------------
	// (synthesizer pair1 pair2 ... :inner region :outer region)
	//
	// Without templates, inner is the conjunction of the primaries and outer
	// that of the secondaries.
	// -----------------------------------------------------------------------
	env.AddFunction("synthesizer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only(name, "inner", "outer"); err != nil {
			return zygo.SexpNull, err
		}
		var rules []layer.PairRule
		var inner, outer []boundary.Expr
		for i, a := range pa.positional {
			p, ok := a.(*sexpPair)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("synthesizer: argument %d: expected pair, got %s", i+1, a.SexpString(nil))
			}
			rules = append(rules, p.rule)
			inner = append(inner, boundary.Ref(p.rule.Primary))
			outer = append(outer, boundary.Ref(p.rule.Secondary))
		}
		in, out := boundary.Intersect(inner...), boundary.Intersect(outer...)
		for key, dst := range map[string]*boundary.Expr{"inner": &in, "outer": &out} {
			if v, ok := pa.kw[key]; ok {
				e, err := toRegion(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("synthesizer: %s: %w", key, err)
				}
				*dst = e
			}
		}
		s, err := b.m.NewSynthesizer(rules, in, out)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSynth{synth: s}, nil
	})

	// -----------------------------------------------------------------------
	// (layers c synth ... :fractions (list 0.6 0.8) :materials (list 4 5 6))
	//
	// Exactly one of :fractions, :thicknesses, :uniform and :preset gives the
	// partition. :preset names a layering preset from the configuration and
	// excludes :materials and :densities. Returns the new cells in layer
	// order.
	// -----------------------------------------------------------------------
	env.AddFunction("layers", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only(name, "fractions", "thicknesses", "uniform", "preset", "materials", "densities"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) == 0 {
			return zygo.SexpNull, fmt.Errorf("layers requires a cell")
		}
		id, err := toCell(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("layers: %w", err)
		}
		var synths []*layer.Synthesizer
		for i, a := range pa.positional[1:] {
			s, err := toSynth(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("layers: argument %d: %w", i+2, err)
			}
			synths = append(synths, s)
		}
		spec, err := b.layerSpec(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("layers: %w", err)
		}

		ids, err := b.m.Divide(id, spec, synths...)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("layers: %w", err)
		}
		out := make([]zygo.Sexp, len(ids))
		for i, id := range ids {
			out[i] = &sexpCell{id: id}
		}
		return zygo.MakeList(out), nil
	})
}

// layerSpec builds the layer specification from the keywords of a layers
// call.
func (b *builder) layerSpec(pa kwArgs) (layer.Spec, error) {
	var spec layer.Spec
	given := 0
	for _, key := range []string{"fractions", "thicknesses", "uniform", "preset"} {
		if _, ok := pa.kw[key]; ok {
			given++
		}
	}
	if given != 1 {
		return spec, fmt.Errorf("exactly one of :fractions, :thicknesses, :uniform or :preset is required")
	}

	if v, ok := pa.kw["preset"]; ok {
		if len(pa.kw) > 1 {
			return spec, fmt.Errorf(":preset excludes other keywords")
		}
		preset, err := toKeywordString(v)
		if err != nil {
			return spec, fmt.Errorf("preset: %w", err)
		}
		return b.m.Config.Preset(preset)
	}

	var err error
	switch {
	case pa.kw["fractions"] != nil:
		spec.Fractions, err = toFloats(pa.kw["fractions"])
	case pa.kw["thicknesses"] != nil:
		var ts []float64
		if ts, err = toFloats(pa.kw["thicknesses"]); err == nil {
			spec.Fractions, err = layer.FractionsFromThicknesses(ts)
		}
	default:
		var n int
		if n, err = toInt(pa.kw["uniform"]); err == nil {
			spec.Fractions, err = layer.UniformFractions(n)
		}
	}
	if err != nil {
		return spec, err
	}

	v, ok := pa.kw["materials"]
	if !ok {
		return spec, fmt.Errorf(":materials is required")
	}
	if spec.Materials, err = toMaterials(v); err != nil {
		return spec, fmt.Errorf("materials: %w", err)
	}
	if v, ok := pa.kw["densities"]; ok {
		if spec.Densities, err = toFloats(v); err != nil {
			return spec, fmt.Errorf("densities: %w", err)
		}
	}
	return spec, nil
}
