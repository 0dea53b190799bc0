// Package model ties one surface registry, one cell store and one layering
// engine into a build session.
package model

import (
	"fmt"
	"log/slog"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/cell"
	"github.com/chazu/lamina/pkg/config"
	"github.com/chazu/lamina/pkg/layer"
	"github.com/chazu/lamina/pkg/surface"
	"github.com/google/uuid"
)

// Model is a build session. Surface and cell numbering are local to it.
type Model struct {
	ID       uuid.UUID
	Config   *config.Config
	Surfaces *surface.Registry
	Cells    *cell.Store
	Engine   *layer.Engine

	logger *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the session logger. A nil logger means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithID fixes the session id, as when reloading a snapshot.
func WithID(id uuid.UUID) Option {
	return func(m *Model) {
		m.ID = id
	}
}

// New starts an empty session configured by cfg. A nil cfg means defaults.
func New(cfg *config.Config, opts ...Option) *Model {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Model{
		ID:     uuid.New(),
		Config: cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("session", m.ID.String())

	m.Surfaces = surface.NewRegistryFrom(cfg.GetSurfaceStart())
	m.Cells = cell.NewStoreFrom(cfg.GetCellStart(), cfg.GetMaxCells())
	m.Engine = layer.NewEngine(m.Surfaces, m.Cells,
		layer.WithLogger(m.logger),
		layer.WithTolerance(cfg.GetTolerance()),
	)
	return m
}

// Logger returns the session logger.
func (m *Model) Logger() *slog.Logger { return m.logger }

// AddSurface registers s.
func (m *Model) AddSurface(s surface.Surface) (surface.Number, error) {
	n, err := m.Surfaces.Register(s)
	if err != nil {
		return 0, err
	}
	m.logger.Debug("surface registered", "surface", n, "kind", s.Kind())
	return n, nil
}

// AddCell inserts a cell after checking that its boundary resolves.
func (m *Model) AddCell(mat cell.MaterialID, density float64, b boundary.Expr) (cell.ID, error) {
	if _, err := b.Render(m.Surfaces); err != nil {
		return 0, err
	}
	id, err := m.Cells.Insert(cell.Cell{Material: mat, Density: density, Boundary: b})
	if err != nil {
		return 0, err
	}
	m.logger.Debug("cell inserted", "cell", id, "material", mat)
	return id, nil
}

// NewSynthesizer builds a synthesizer over this session's registry, using
// the configured tolerance.
func (m *Model) NewSynthesizer(rules []layer.PairRule, inner, outer boundary.Expr) (*layer.Synthesizer, error) {
	return layer.NewSynthesizer(m.Surfaces, rules, inner, outer, layer.SynthTolerance(m.Config.GetTolerance()))
}

// Divide layers cell id; see layer.Engine.Divide.
func (m *Model) Divide(id cell.ID, spec layer.Spec, synths ...*layer.Synthesizer) ([]cell.ID, error) {
	return m.Engine.Divide(id, spec, synths)
}

// CellCards returns one card per live cell in id order. Every boundary is
// rendered against the registry, so a stale reference is an error here.
func (m *Model) CellCards() ([]string, error) {
	cells := m.Cells.Cells()
	cards := make([]string, 0, len(cells))
	for _, c := range cells {
		if _, err := c.Boundary.Render(m.Surfaces); err != nil {
			return nil, fmt.Errorf("cell %d: %w", c.ID, err)
		}
		cards = append(cards, c.Card())
	}
	return cards, nil
}

// SurfaceCards returns one "number description" line per surface.
func (m *Model) SurfaceCards() []string {
	nums := m.Surfaces.Numbers()
	cards := make([]string, 0, len(nums))
	for _, n := range nums {
		s, err := m.Surfaces.Resolve(n)
		if err != nil {
			continue
		}
		cards = append(cards, fmt.Sprintf("%d %v", n, s))
	}
	return cards
}
