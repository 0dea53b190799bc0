// Package layer divides a cell into material layers. Surfaces between the
// layers are synthesized by interpolating pairs of the cell's own bounding
// surfaces, and every layer's boundary is a rewrite of the original cell's
// boundary, so the layers tile the original region exactly.
package layer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/cell"
	"github.com/chazu/lamina/pkg/surface"
)

// CellStore is the part of cell.Store the engine needs.
type CellStore interface {
	Get(id cell.ID) (cell.Cell, error)
	ReplaceWith(id cell.ID, replacements []cell.Cell) ([]cell.ID, error)
}

// Engine runs divisions against one registry and one store.
type Engine struct {
	reg      surface.Registrar
	store    CellStore
	logger   *slog.Logger
	tol      float64
	observer func(cell.ID, State)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. A nil logger means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTolerance sets the geometric tolerance used for compatibility checks.
func WithTolerance(tol float64) Option {
	return func(e *Engine) {
		if tol > 0 {
			e.tol = tol
		}
	}
}

// WithObserver registers fn to be called on every state transition.
func WithObserver(fn func(cell.ID, State)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// NewEngine returns an engine that registers surfaces in reg and commits
// layers to store.
func NewEngine(reg surface.Registrar, store CellStore, opts ...Option) *Engine {
	e := &Engine{
		reg:   reg,
		store: store,
		tol:   surface.Tolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// ---------------------------------------------------------------------------
// Division state
// ---------------------------------------------------------------------------

type division struct {
	e     *Engine
	id    cell.ID
	state State
	log   *slog.Logger
}

// to advances the state machine. An illegal step is a bug in this package.
func (d *division) to(next State) {
	if !CanTransition(d.state, next) {
		panic(fmt.Sprintf("layer: illegal transition %s -> %s", d.state, next))
	}
	d.log.Debug("division state", "from", d.state, "to", next)
	d.state = next
	if d.e.observer != nil {
		d.e.observer(d.id, next)
	}
}

func (d *division) abort(err *Error) error {
	d.to(StateAborted)
	d.log.Warn("division aborted", "phase", err.Phase, "error", err.Err)
	return err
}

// ---------------------------------------------------------------------------
// Divide
// ---------------------------------------------------------------------------

// Divide replaces cell id with spec.Layers() cells, layer i filled with
// spec.Materials[i] and bounded by the original boundary in which every
// synthesizer's pattern is replaced by its slab between the surfaces at the
// layer's two fractions. Synthesizers are applied in order.
//
// Divide is all or nothing for the store. Every check that can fail is made
// before a surface is registered; if a later step still fails, surfaces
// already registered are left in the registry unused.
func (e *Engine) Divide(id cell.ID, spec Spec, synths []*Synthesizer) ([]cell.ID, error) {
	d := &division{e: e, id: id, state: StateIdle, log: e.logger.With("cell", id)}

	orig, verr := e.validate(id, spec, synths)
	if verr != nil {
		return nil, d.abort(verr)
	}
	d.to(StateValidated)

	d.to(StateSynthesizing)
	surfs, serr := e.synthesize(id, spec, synths)
	if serr != nil {
		return nil, d.abort(serr)
	}
	bounds, berr := layerBoundaries(orig, spec, synths, surfs.at)
	if berr != nil {
		berr.Phase = PhaseSynthesize
		return nil, d.abort(berr)
	}

	d.to(StateCommitting)
	cells := make([]cell.Cell, len(bounds))
	for i, b := range bounds {
		cells[i] = cell.Cell{
			Material: spec.Materials[i],
			Density:  spec.density(i, orig.Density),
			Boundary: b,
		}
	}
	ids, err := e.store.ReplaceWith(id, cells)
	if err != nil {
		return nil, d.abort(newError(id, PhaseCommit, err))
	}
	d.to(StateDone)

	d.log.Info("cell divided", "layers", len(ids), "ids", ids)
	return ids, nil
}

// Check runs Divide's validation without changing the registry or the store.
func (e *Engine) Check(id cell.ID, spec Spec, synths []*Synthesizer) error {
	if _, err := e.validate(id, spec, synths); err != nil {
		return err
	}
	return nil
}

func (e *Engine) validate(id cell.ID, spec Spec, synths []*Synthesizer) (cell.Cell, *Error) {
	orig, err := e.store.Get(id)
	if err != nil {
		return cell.Cell{}, newError(id, PhaseValidate, err)
	}
	if _, err := orig.Boundary.Render(e.reg); err != nil {
		return cell.Cell{}, newError(id, PhaseValidate, err)
	}
	if idx, err := spec.Validate(); err != nil {
		le := newError(id, PhaseValidate, err)
		if idx >= 0 {
			le.Layer = idx
			le.Fraction = spec.Fractions[idx]
			if idx < len(spec.Materials) {
				le.Material = spec.Materials[idx]
			}
		}
		return cell.Cell{}, le
	}
	if len(synths) == 0 {
		return cell.Cell{}, newError(id, PhaseValidate, errors.New("no synthesizers"))
	}
	for j, s := range synths {
		if s == nil {
			le := newError(id, PhaseValidate, errors.New("nil synthesizer"))
			le.Synth = j
			return cell.Cell{}, le
		}
		if pair, err := s.check(e.tol); err != nil {
			le := newError(id, PhaseValidate, err)
			le.Synth, le.Pair = j, pair
			return cell.Cell{}, le
		}
	}

	// Dry run with placeholder numbers that collide with nothing the
	// rewrite can see, so pattern failures surface before registration.
	ph := newPlaceholders(orig.Boundary, spec, synths)
	if _, le := layerBoundaries(orig, spec, synths, ph.at); le != nil {
		return cell.Cell{}, le
	}
	return orig, nil
}

// ---------------------------------------------------------------------------
// Surfaces at partition points
// ---------------------------------------------------------------------------

// pointFraction returns the fraction at partition point t: 0, the interior
// fractions, then 1.
func pointFraction(spec Spec, t int) float64 {
	switch {
	case t == 0:
		return 0
	case t > len(spec.Fractions):
		return 1
	}
	return spec.Fractions[t-1]
}

// pointSurfaces holds, per synthesizer, the surfaces at each partition point.
type pointSurfaces [][][]surface.Number

func (p pointSurfaces) at(j, t int) []surface.Number { return p[j][t] }

func (e *Engine) synthesize(id cell.ID, spec Spec, synths []*Synthesizer) (pointSurfaces, *Error) {
	points := spec.Layers() + 1
	out := make(pointSurfaces, len(synths))
	for j, s := range synths {
		out[j] = make([][]surface.Number, points)
		for t := range points {
			f := pointFraction(spec, t)
			nums, pair, err := s.advance(f, e.tol)
			if err != nil {
				le := newError(id, PhaseSynthesize, err)
				le.Synth, le.Pair = j, pair
				le.Layer = max(t-1, 0)
				le.Fraction = f
				le.Material = spec.Materials[le.Layer]
				return nil, le
			}
			out[j][t] = nums
		}
	}
	return out, nil
}

func newPlaceholders(b boundary.Expr, spec Spec, synths []*Synthesizer) pointSurfaces {
	next := maxSurface(b, synths) + 1
	points := spec.Layers() + 1
	out := make(pointSurfaces, len(synths))
	for j, s := range synths {
		out[j] = make([][]surface.Number, points)
		out[j][0] = s.Primaries()
		out[j][points-1] = s.Secondaries()
		for t := 1; t < points-1; t++ {
			nums := make([]surface.Number, len(s.rules))
			for k := range nums {
				nums[k] = next
				next++
			}
			out[j][t] = nums
		}
	}
	return out
}

func maxSurface(b boundary.Expr, synths []*Synthesizer) surface.Number {
	var hi surface.Number
	bump := func(nums []surface.Number) {
		for _, n := range nums {
			hi = max(hi, n)
		}
	}
	bump(b.Surfaces())
	for _, s := range synths {
		bump(s.inner.Surfaces())
		bump(s.outer.Surfaces())
		bump(s.Primaries())
		bump(s.Secondaries())
	}
	return hi
}

// layerBoundaries rewrites the original boundary once per layer. at(j, t)
// supplies synthesizer j's surfaces at partition point t.
func layerBoundaries(orig cell.Cell, spec Spec, synths []*Synthesizer, at func(j, t int) []surface.Number) ([]boundary.Expr, *Error) {
	out := make([]boundary.Expr, spec.Layers())
	for i := range out {
		expr := orig.Boundary
		for j, s := range synths {
			slab, err := s.BoundaryFor(at(j, i), at(j, i+1))
			if err != nil {
				return nil, layerError(orig.ID, spec, i, j, err)
			}
			pattern := s.Pattern()
			var ok bool
			expr, ok = expr.SubstituteSubtree(pattern, slab)
			if !ok {
				err := fmt.Errorf("%w: %q in %q", ErrSubstitutionNotFound, pattern, expr)
				return nil, layerError(orig.ID, spec, i, j, err)
			}
		}
		out[i] = expr
	}
	return out, nil
}

func layerError(id cell.ID, spec Spec, layer, synth int, err error) *Error {
	le := newError(id, PhaseValidate, err)
	le.Layer = layer
	le.Fraction, _ = spec.Bounds(layer)
	le.Material = spec.Materials[layer]
	le.Synth = synth
	return le
}
