package main

import (
	"errors"
	"log/slog"

	"github.com/chazu/lamina/pkg/config"
	"github.com/chazu/lamina/pkg/engine"
	"github.com/chazu/lamina/pkg/kernel"
	"github.com/chazu/lamina/pkg/kernel/sdfx"
	"github.com/chazu/lamina/pkg/model"
	"github.com/chazu/lamina/pkg/tessellate"
)

// colorPalette assigns distinct colors to materials.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App runs the build pipeline: script, model, cards and optional meshes.
type App struct {
	cfg    *config.Config
	engine *engine.Engine
	kernel kernel.Kernel
	logger *slog.Logger
}

// MeshData is the JSON form of one cell's mesh.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Cell     int       `json:"cell"`
	Material int       `json:"material"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// PointData lists the cells containing one point.
type PointData struct {
	At    [3]float64 `json:"at"`
	Cells []int      `json:"cells"`
}

// EvalResult is everything one evaluation produced.
type EvalResult struct {
	Session  string          `json:"session,omitempty"`
	Surfaces []string        `json:"surfaces"`
	Cells    []string        `json:"cells"`
	Meshes   []MeshData      `json:"meshes,omitempty"`
	Point    *PointData      `json:"point,omitempty"`
	Errors   []EvalErrorData `json:"errors"`

	model *model.Model
}

// NewApp creates an App with an engine and the sdfx kernel, both configured
// by cfg.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:    cfg,
		engine: engine.NewEngine(cfg, engine.WithLogger(logger)),
		kernel: sdfx.New(cfg.GetWorldExtent(), cfg.GetMeshCells()),
		logger: logger,
	}
}

// Evaluate runs source and reports its cards. With mesh set, every
// material cell is also tessellated.
func (a *App) Evaluate(source string, mesh bool) EvalResult {
	result := EvalResult{
		Surfaces: []string{},
		Cells:    []string{},
		Errors:   []EvalErrorData{},
	}

	// Step 1: Evaluate the script into a model.
	m, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		a.logger.Error("evaluate failed", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the output format.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	result.model = m
	result.Session = m.ID.String()

	// Step 3: Render the cards.
	if err := a.cards(m, &result); err != nil {
		a.logger.Error("render cards failed", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if !mesh {
		return result
	}

	// Step 4: Tessellate the cells into triangle meshes.
	meshes, err := tessellate.Tessellate(m.Cells, m.Surfaces, a.kernel, a.cfg.GetWorldExtent())
	if err != nil {
		a.logger.Error("tessellate failed", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}
	for _, mesh := range meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: mesh.Vertices,
			Normals:  mesh.Normals,
			Indices:  mesh.Indices,
			Cell:     mesh.Cell,
			Material: mesh.Material,
			Color:    colorPalette[mesh.Material%len(colorPalette)],
		})
	}
	return result
}

func (a *App) cards(m *model.Model, result *EvalResult) error {
	cells, err := m.CellCards()
	if err != nil {
		return err
	}
	result.Cells = cells
	result.Surfaces = m.SurfaceCards()
	return nil
}

// Locate returns the ids of the cells of an evaluated result that contain p.
func (a *App) Locate(result EvalResult, p [3]float64) ([]int, error) {
	if result.model == nil {
		return nil, errors.New("no model to locate in")
	}
	ids, err := tessellate.Classify(result.model.Cells, result.model.Surfaces, a.kernel, p)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}
