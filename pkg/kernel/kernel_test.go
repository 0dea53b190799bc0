package kernel

import (
	"testing"

	"github.com/chazu/lamina/pkg/surface"
)

// --- Mesh helper method tests ---

func TestMeshCounts(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		indices  []uint32
		verts    int
		tris     int
	}{
		{"empty", nil, nil, 0, 0},
		{"one triangle", []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, []uint32{0, 1, 2}, 3, 1},
		{"quad", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, []uint32{0, 1, 2, 2, 3, 0}, 4, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices, Indices: tt.indices}
			if got := m.VertexCount(); got != tt.verts {
				t.Errorf("VertexCount() = %d, want %d", got, tt.verts)
			}
			if got := m.TriangleCount(); got != tt.tris {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.tris)
			}
			if got := m.IsEmpty(); got != (tt.verts == 0) {
				t.Errorf("IsEmpty() = %v", got)
			}
		})
	}
}

func TestMeshBounds(t *testing.T) {
	if _, _, ok := (&Mesh{}).Bounds(); ok {
		t.Error("Bounds() ok for empty mesh")
	}
	m := &Mesh{Vertices: []float32{1, -2, 3, -4, 5, 0, 2, 2, -6}}
	min, max, ok := m.Bounds()
	if !ok {
		t.Fatal("Bounds() not ok")
	}
	if min != [3]float32{-4, -2, -6} || max != [3]float32{2, 5, 3} {
		t.Errorf("Bounds() = %v, %v", min, max)
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubSolid is an axis-aligned box.
type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

func (s *stubSolid) Contains(p [3]float64) bool {
	for a := range 3 {
		if p[a] <= s.minBB[a] || p[a] >= s.maxBB[a] {
			return false
		}
	}
	return true
}

// stubKernel proves the interface is satisfiable. Half-spaces are ignored.
type stubKernel struct{}

func (k *stubKernel) HalfSpace(_ surface.Surface, _ bool) (Solid, error) {
	return &stubSolid{}, nil
}

func (k *stubKernel) Box(min, max [3]float64) (Solid, error) {
	return &stubSolid{minBB: min, maxBB: max}, nil
}

func (k *stubKernel) Union(a, _ Solid) Solid        { return a }
func (k *stubKernel) Intersection(a, _ Solid) Solid { return a }

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBox(t *testing.T) {
	var k Kernel = &stubKernel{}
	s, err := k.Box([3]float64{-1, -2, -3}, [3]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("Box() error = %v", err)
	}
	min, max := s.BoundingBox()
	if min != [3]float64{-1, -2, -3} || max != [3]float64{1, 2, 3} {
		t.Errorf("BoundingBox() = %v, %v", min, max)
	}
	if !s.Contains([3]float64{0, 0, 0}) || s.Contains([3]float64{0, 0, 3}) {
		t.Error("Contains() misclassifies")
	}
}
