// Package cell holds the cell store: the registry of regions of space, each
// filled with one material and bounded by a boundary expression.
package cell

import (
	"fmt"

	"github.com/chazu/lamina/pkg/boundary"
)

// ID identifies a cell. IDs are issued monotonically and never reused.
type ID int

// MaterialID names a material. Zero is void.
type MaterialID int

// Void is the empty material.
const Void MaterialID = 0

// Cell is a region of space filled with one material.
type Cell struct {
	ID       ID            `json:"id"`
	Material MaterialID    `json:"material"`
	Density  float64       `json:"density"`
	Boundary boundary.Expr `json:"boundary"`
}

// IsVoid reports whether the cell carries no material.
func (c Cell) IsVoid() bool { return c.Material == Void }

// Card formats c as a cell card: id, material, density (omitted for void)
// and boundary text.
func (c Cell) Card() string {
	if c.IsVoid() {
		return fmt.Sprintf("%d 0 %s", c.ID, c.Boundary)
	}
	return fmt.Sprintf("%d %d %g %s", c.ID, c.Material, c.Density, c.Boundary)
}

func (c Cell) validate() error {
	if c.Boundary.IsEmpty() {
		return fmt.Errorf("cell: empty boundary")
	}
	if c.Material < 0 {
		return fmt.Errorf("cell: material %d is negative", c.Material)
	}
	return nil
}
