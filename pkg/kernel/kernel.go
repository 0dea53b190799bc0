// Package kernel defines the abstract solid kernel used to classify points
// against cells and to mesh them. A cell's boundary maps onto kernel solids
// one to one: each signed surface reference is a half-space, intersection
// and union are the kernel's booleans, and a world box clips the result to
// something finite.
package kernel

import "github.com/chazu/lamina/pkg/surface"

// Solid is an opaque handle to a kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
	// Contains reports whether p lies strictly inside the solid.
	Contains(p [3]float64) bool
}

// Kernel is the abstract solid kernel interface.
type Kernel interface {
	// Primitives
	HalfSpace(s surface.Surface, positive bool) (Solid, error)
	Box(min, max [3]float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
