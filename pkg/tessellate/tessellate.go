// Package tessellate walks the cells of a model and produces triangle meshes
// using a solid kernel. One mesh is produced per non-void cell.
package tessellate

import (
	"fmt"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/cell"
	"github.com/chazu/lamina/pkg/kernel"
	"github.com/chazu/lamina/pkg/surface"
)

// CellSource lists cells in a stable order.
type CellSource interface {
	Cells() []cell.Cell
}

// Tessellate meshes every non-void cell of cells, clipped to the cube of
// half-width extent. The tessellator is read-only and never mutates the
// cells or the registry.
func Tessellate(cells CellSource, res surface.Resolver, k kernel.Kernel, extent float64) ([]*kernel.Mesh, error) {
	if cells == nil {
		return nil, nil
	}
	world, err := k.Box([3]float64{-extent, -extent, -extent}, [3]float64{extent, extent, extent})
	if err != nil {
		return nil, fmt.Errorf("tessellate: world box: %w", err)
	}

	var meshes []*kernel.Mesh
	for _, c := range cells.Cells() {
		if c.IsVoid() {
			continue
		}
		solid, err := Solid(c.Boundary, res, k)
		if err != nil {
			return nil, fmt.Errorf("tessellate: cell %d: %w", c.ID, err)
		}
		mesh, err := k.ToMesh(k.Intersection(world, solid))
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for cell %d: %w", c.ID, err)
		}
		mesh.Cell = int(c.ID)
		mesh.Material = int(c.Material)
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// Solid builds the kernel solid of a boundary expression: leaves become
// half-spaces, intersections and unions the kernel's booleans.
func Solid(b boundary.Expr, res surface.Resolver, k kernel.Kernel) (kernel.Solid, error) {
	if b.IsEmpty() {
		return nil, fmt.Errorf("empty boundary")
	}
	return walkNode(b.Root(), res, k)
}

// walkNode recursively converts a boundary node into a solid.
func walkNode(n boundary.Node, res surface.Resolver, k kernel.Kernel) (kernel.Solid, error) {
	switch v := n.(type) {
	case boundary.Leaf:
		s, err := res.Resolve(v.Ref.Number())
		if err != nil {
			return nil, err
		}
		return k.HalfSpace(s, v.Ref.Positive())

	case boundary.And:
		l, r, err := walkPair(v.L, v.R, res, k)
		if err != nil {
			return nil, err
		}
		return k.Intersection(l, r), nil

	case boundary.Or:
		l, r, err := walkPair(v.L, v.R, res, k)
		if err != nil {
			return nil, err
		}
		return k.Union(l, r), nil

	default:
		return nil, fmt.Errorf("unknown boundary node %T", n)
	}
}

func walkPair(l, r boundary.Node, res surface.Resolver, k kernel.Kernel) (kernel.Solid, kernel.Solid, error) {
	ls, err := walkNode(l, res, k)
	if err != nil {
		return nil, nil, err
	}
	rs, err := walkNode(r, res, k)
	if err != nil {
		return nil, nil, err
	}
	return ls, rs, nil
}

// Classify returns the ids of the cells containing p, in cell order. For a
// well-formed model the result has at most one element.
func Classify(cells CellSource, res surface.Resolver, k kernel.Kernel, p [3]float64) ([]cell.ID, error) {
	var ids []cell.ID
	for _, c := range cells.Cells() {
		solid, err := Solid(c.Boundary, res, k)
		if err != nil {
			return nil, fmt.Errorf("classify: cell %d: %w", c.ID, err)
		}
		if solid.Contains(p) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
