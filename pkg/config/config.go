// Package config loads lamina's build settings from a JSON file. Every field
// is optional; the Get* methods fall back to defaults for anything unset.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/chazu/lamina/pkg/cell"
	"github.com/chazu/lamina/pkg/layer"
	"github.com/chazu/lamina/pkg/surface"
)

const (
	defaultWorldExtent = 100.0
	defaultMeshCells   = 64
	defaultEvalTimeout = 5 * time.Second
	maxFileSize        = 1 * 1024 * 1024 // 1MB
)

// Config is the root configuration.
type Config struct {
	// Numbering
	SurfaceStart *int `json:"surface_start,omitempty"`
	CellStart    *int `json:"cell_start,omitempty"`
	MaxCells     *int `json:"max_cells,omitempty"` // 0 means unbounded

	// Geometry
	Tolerance   *float64 `json:"tolerance,omitempty"`
	WorldExtent *float64 `json:"world_extent,omitempty"` // half-width of the world box
	MeshCells   *int     `json:"mesh_cells,omitempty"`   // marching-cubes cells along the longest axis

	// Evaluation
	EvalTimeout *string `json:"eval_timeout,omitempty"` // duration string like "5s"
	LogLevel    *string `json:"log_level,omitempty"`    // debug, info, warn or error

	// Layering presets by component name.
	Layers map[string]LayerPreset `json:"layers,omitempty"`
}

// LayerPreset describes how one component is layered. Exactly one of
// Fractions and Thicknesses is set.
type LayerPreset struct {
	Fractions   []float64 `json:"fractions,omitempty"`
	Thicknesses []float64 `json:"thicknesses,omitempty"`
	Materials   []int     `json:"materials"`
	Densities   []float64 `json:"densities,omitempty"`
}

// Spec converts the preset into a layer specification.
func (p LayerPreset) Spec() (layer.Spec, error) {
	var spec layer.Spec
	switch {
	case len(p.Fractions) > 0 && len(p.Thicknesses) > 0:
		return spec, fmt.Errorf("preset sets both fractions and thicknesses")
	case len(p.Thicknesses) > 0:
		fr, err := layer.FractionsFromThicknesses(p.Thicknesses)
		if err != nil {
			return spec, err
		}
		spec.Fractions = fr
	default:
		spec.Fractions = slices.Clone(p.Fractions)
	}
	for _, m := range p.Materials {
		spec.Materials = append(spec.Materials, cell.MaterialID(m))
	}
	spec.Densities = slices.Clone(p.Densities)
	if _, err := spec.Validate(); err != nil {
		return layer.Spec{}, err
	}
	return spec, nil
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Default returns a Config with every scalar field set to its default.
func Default() *Config {
	return &Config{
		SurfaceStart: ptrInt(1),
		CellStart:    ptrInt(1),
		MaxCells:     ptrInt(0),
		Tolerance:    ptrFloat64(surface.Tolerance),
		WorldExtent:  ptrFloat64(defaultWorldExtent),
		MeshCells:    ptrInt(defaultMeshCells),
		EvalTimeout:  ptrString(defaultEvalTimeout.String()),
		LogLevel:     ptrString("info"),
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.SurfaceStart != nil && *c.SurfaceStart < 1 {
		return fmt.Errorf("surface_start must be positive, got %d", *c.SurfaceStart)
	}
	if c.CellStart != nil && *c.CellStart < 1 {
		return fmt.Errorf("cell_start must be positive, got %d", *c.CellStart)
	}
	if c.MaxCells != nil && *c.MaxCells < 0 {
		return fmt.Errorf("max_cells must be non-negative, got %d", *c.MaxCells)
	}
	if c.Tolerance != nil && !(*c.Tolerance > 0) {
		return fmt.Errorf("tolerance must be positive, got %g", *c.Tolerance)
	}
	if c.WorldExtent != nil && !(*c.WorldExtent > 0) {
		return fmt.Errorf("world_extent must be positive, got %g", *c.WorldExtent)
	}
	if c.MeshCells != nil && *c.MeshCells < 2 {
		return fmt.Errorf("mesh_cells must be at least 2, got %d", *c.MeshCells)
	}
	if c.EvalTimeout != nil && *c.EvalTimeout != "" {
		d, err := time.ParseDuration(*c.EvalTimeout)
		if err != nil {
			return fmt.Errorf("invalid eval_timeout '%s': %w", *c.EvalTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("eval_timeout must be positive, got %s", d)
		}
	}
	if c.LogLevel != nil {
		if _, err := parseLevel(*c.LogLevel); err != nil {
			return err
		}
	}
	for name, p := range c.Layers {
		if _, err := p.Spec(); err != nil {
			return fmt.Errorf("layers %q: %w", name, err)
		}
	}
	return nil
}

// GetSurfaceStart returns the first surface number or the default.
func (c *Config) GetSurfaceStart() surface.Number {
	if c.SurfaceStart == nil {
		return 1
	}
	return surface.Number(*c.SurfaceStart)
}

// GetCellStart returns the first cell id or the default.
func (c *Config) GetCellStart() cell.ID {
	if c.CellStart == nil {
		return 1
	}
	return cell.ID(*c.CellStart)
}

// GetMaxCells returns the store capacity, 0 for unbounded.
func (c *Config) GetMaxCells() int {
	if c.MaxCells == nil {
		return 0
	}
	return *c.MaxCells
}

// GetTolerance returns the geometric tolerance or the default.
func (c *Config) GetTolerance() float64 {
	if c.Tolerance == nil {
		return surface.Tolerance
	}
	return *c.Tolerance
}

// GetWorldExtent returns the half-width of the world box or the default.
func (c *Config) GetWorldExtent() float64 {
	if c.WorldExtent == nil {
		return defaultWorldExtent
	}
	return *c.WorldExtent
}

// GetMeshCells returns the marching-cubes resolution or the default.
func (c *Config) GetMeshCells() int {
	if c.MeshCells == nil {
		return defaultMeshCells
	}
	return *c.MeshCells
}

// GetEvalTimeout parses and returns the EvalTimeout as a time.Duration.
func (c *Config) GetEvalTimeout() time.Duration {
	if c.EvalTimeout == nil || *c.EvalTimeout == "" {
		return defaultEvalTimeout
	}
	d, err := time.ParseDuration(*c.EvalTimeout)
	if err != nil || d <= 0 {
		return defaultEvalTimeout
	}
	return d
}

// GetLogLevel returns the configured slog level, info by default.
func (c *Config) GetLogLevel() slog.Level {
	if c.LogLevel == nil {
		return slog.LevelInfo
	}
	l, err := parseLevel(*c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// Preset returns the named layering preset as a layer specification.
func (c *Config) Preset(name string) (layer.Spec, error) {
	p, ok := c.Layers[name]
	if !ok {
		return layer.Spec{}, fmt.Errorf("no layer preset %q", name)
	}
	spec, err := p.Spec()
	if err != nil {
		return layer.Spec{}, fmt.Errorf("layer preset %q: %w", name, err)
	}
	return spec, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return l, fmt.Errorf("invalid log_level %q", s)
	}
	return l, nil
}
