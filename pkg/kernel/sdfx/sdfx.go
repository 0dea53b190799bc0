// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"

	"github.com/chazu/lamina/pkg/kernel"
	"github.com/chazu/lamina/pkg/surface"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

const (
	defaultExtent    = 100.0
	defaultMeshCells = 64
)

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Contains reports whether the distance field is negative at p.
func (s *sdfxSolid) Contains(p [3]float64) bool {
	return s.s.Evaluate(v3.Vec{X: p[0], Y: p[1], Z: p[2]}) < 0
}

// halfSpace is the SDF of one side of a registered surface. Its bounding box
// is the world box, since a half-space is unbounded.
type halfSpace struct {
	srf  surface.Surface
	sign float64 // -1 selects the positive side
	bb   sdf.Box3
}

func (h *halfSpace) Evaluate(p v3.Vec) float64 {
	return h.sign * h.srf.Sense(r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
}

func (h *halfSpace) BoundingBox() sdf.Box3 {
	return h.bb
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	extent    float64
	meshCells int
}

// New returns a kernel whose half-spaces are bounded by the cube of the
// given half-width and which meshes with meshCells marching-cubes cells
// along the longest axis. Non-positive values select defaults.
func New(extent float64, meshCells int) *SdfxKernel {
	if extent <= 0 {
		extent = defaultExtent
	}
	if meshCells <= 1 {
		meshCells = defaultMeshCells
	}
	return &SdfxKernel{extent: extent, meshCells: meshCells}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// HalfSpace returns the positive or negative side of s.
func (k *SdfxKernel) HalfSpace(s surface.Surface, positive bool) (kernel.Solid, error) {
	if s == nil {
		return nil, fmt.Errorf("sdfx: nil surface")
	}
	sign := 1.0
	if positive {
		sign = -1
	}
	e := k.extent
	bb := sdf.Box3{Min: v3.Vec{X: -e, Y: -e, Z: -e}, Max: v3.Vec{X: e, Y: e, Z: e}}
	return wrap(&halfSpace{srf: s, sign: sign, bb: bb}), nil
}

// Box creates an axis-aligned box between min and max. sdf.Box3D centers the
// box at the origin, so it is translated to the midpoint.
func (k *SdfxKernel) Box(min, max [3]float64) (kernel.Solid, error) {
	size := v3.Vec{X: max[0] - min[0], Y: max[1] - min[1], Z: max[2] - min[2]}
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("sdfx: degenerate box %v..%v", min, max)
	}
	s, err := sdf.Box3D(size, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{
		X: (min[0] + max[0]) / 2,
		Y: (min[1] + max[1]) / 2,
		Z: (min[2] + max[2]) / 2,
	})
	return wrap(sdf.Transform3D(s, m)), nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids. sdfx takes the
// bounding box of the first operand, so pass the tighter solid first.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
