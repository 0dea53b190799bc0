package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/cell"
	"github.com/chazu/lamina/pkg/layer"
	"github.com/chazu/lamina/pkg/surface"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values between builtins
// ---------------------------------------------------------------------------

type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSurface is a registered surface.
type sexpSurface struct {
	n    surface.Number
	kind surface.Kind
}

func (s *sexpSurface) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(surface %d %s)", s.n, s.kind)
}
func (s *sexpSurface) Type() *zygo.RegisteredType { return nil }

// sexpRegion is a boundary expression.
type sexpRegion struct {
	expr boundary.Expr
}

func (r *sexpRegion) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(region %q)", r.expr.String())
}
func (r *sexpRegion) Type() *zygo.RegisteredType { return nil }

type sexpPair struct {
	rule layer.PairRule
}

func (p *sexpPair) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pair %d %d)", p.rule.Primary, p.rule.Secondary)
}
func (p *sexpPair) Type() *zygo.RegisteredType { return nil }

type sexpSynth struct {
	synth *layer.Synthesizer
}

func (s *sexpSynth) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(synthesizer %q)", s.synth.Pattern().String())
}
func (s *sexpSynth) Type() *zygo.RegisteredType { return nil }

// sexpCell is a live cell id.
type sexpCell struct {
	id cell.ID
}

func (c *sexpCell) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(cell %d)", c.id)
}
func (c *sexpCell) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	return strings.CutPrefix(str.S, kwPrefix)
}

// kwArgs holds a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments from positional ones. A keyword
// with no value is recorded as a flag with a nil value.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// only rejects keywords outside allowed.
func (pa kwArgs) only(fn string, allowed ...string) error {
	for name := range pa.kw {
		if !slices.Contains(allowed, name) {
			return fmt.Errorf("%s: unknown keyword :%s", fn, name)
		}
	}
	return nil
}

// float returns the keyword's number, or def when it is absent.
func (pa kwArgs) float(key string, def float64) (float64, error) {
	v, ok := pa.kw[key]
	if !ok {
		return def, nil
	}
	return toFloat64(v)
}

// vec returns the keyword's vector and whether it was given.
func (pa kwArgs) vec(key string) (r3.Vec, bool, error) {
	v, ok := pa.kw[key]
	if !ok {
		return r3.Vec{}, false, nil
	}
	vec, err := toVec3(v)
	return vec, true, err
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts a preprocessed keyword (:shell) or a plain
// string ("shell").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toSurface(s zygo.Sexp) (*sexpSurface, error) {
	if v, ok := s.(*sexpSurface); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected surface, got %T (%s)", s, s.SexpString(nil))
}

// toRegion accepts a region value or boundary text such as "1 -2 3".
func toRegion(s zygo.Sexp) (boundary.Expr, error) {
	switch v := s.(type) {
	case *sexpRegion:
		return v.expr, nil
	case *zygo.SexpStr:
		return boundary.Parse(v.S)
	}
	return boundary.Expr{}, fmt.Errorf("expected region, got %T (%s)", s, s.SexpString(nil))
}

// toRef accepts a surface, meaning its positive side, or a region that is a
// single signed reference.
func toRef(s zygo.Sexp) (surface.Ref, error) {
	if v, ok := s.(*sexpSurface); ok {
		return surface.Ref(v.n), nil
	}
	e, err := toRegion(s)
	if err != nil {
		return 0, err
	}
	leaf, ok := e.Root().(boundary.Leaf)
	if !ok {
		return 0, fmt.Errorf("expected a single signed surface, got %q", e.String())
	}
	return leaf.Ref, nil
}

func toCell(s zygo.Sexp) (cell.ID, error) {
	if v, ok := s.(*sexpCell); ok {
		return v.id, nil
	}
	return 0, fmt.Errorf("expected cell, got %T (%s)", s, s.SexpString(nil))
}

func toSynth(s zygo.Sexp) (*layer.Synthesizer, error) {
	if v, ok := s.(*sexpSynth); ok {
		return v.synth, nil
	}
	return nil, fmt.Errorf("expected synthesizer, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a list or array to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

func toFloats(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = toFloat64(item); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return out, nil
}

func toMaterials(s zygo.Sexp) ([]cell.MaterialID, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]cell.MaterialID, len(items))
	for i, item := range items {
		m, err := toInt(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out[i] = cell.MaterialID(m)
	}
	return out, nil
}
