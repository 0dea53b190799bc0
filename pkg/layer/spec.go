package layer

import (
	"fmt"
	"math"

	"github.com/chazu/lamina/pkg/cell"
	"gonum.org/v1/gonum/floats"
)

// Spec partitions a cell into len(Fractions)+1 layers. Fractions are the
// interior boundaries of the partition of [0,1]; layer i spans
// [Fractions[i-1], Fractions[i]] with sentinels 0 and 1 at either end.
//
// Densities is optional. When empty each layer inherits the original cell's
// density; otherwise it must hold one density per material.
type Spec struct {
	Fractions []float64         `json:"fractions"`
	Materials []cell.MaterialID `json:"materials"`
	Densities []float64         `json:"densities,omitempty"`
}

// Layers returns the number of layers the spec produces.
func (s Spec) Layers() int { return len(s.Fractions) + 1 }

// Bounds returns the low and high fractions of layer i.
func (s Spec) Bounds(i int) (low, high float64) {
	low, high = 0, 1
	if i > 0 {
		low = s.Fractions[i-1]
	}
	if i < len(s.Fractions) {
		high = s.Fractions[i]
	}
	return low, high
}

// Validate checks ordering and counts. Index is the offending fraction for
// an ordering error and -1 otherwise.
func (s Spec) Validate() (index int, err error) {
	prev := 0.0
	for i, f := range s.Fractions {
		if math.IsNaN(f) || f <= prev || f >= 1 {
			return i, fmt.Errorf("%w: fraction %d is %g", ErrOrder, i, f)
		}
		prev = f
	}
	if len(s.Materials) != s.Layers() {
		return -1, fmt.Errorf("%w: %d fractions need %d materials, got %d",
			ErrCountMismatch, len(s.Fractions), s.Layers(), len(s.Materials))
	}
	if len(s.Densities) != 0 && len(s.Densities) != len(s.Materials) {
		return -1, fmt.Errorf("%w: %d materials but %d densities",
			ErrCountMismatch, len(s.Materials), len(s.Densities))
	}
	return -1, nil
}

// density returns the density of layer i, falling back to inherit.
func (s Spec) density(i int, inherit float64) float64 {
	if len(s.Densities) == 0 {
		return inherit
	}
	return s.Densities[i]
}

// UniformFractions returns the n-1 interior boundaries dividing [0,1] into n
// equal layers.
func UniformFractions(n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("uniform fractions: need at least one layer, got %d", n)
	}
	out := make([]float64, n-1)
	for i := range out {
		out[i] = float64(i+1) / float64(n)
	}
	return out, nil
}

// FractionsFromThicknesses converts physical layer thicknesses, listed from
// the primary side to the secondary side, into interior fractions: the
// cumulative thickness divided by the total.
func FractionsFromThicknesses(thicknesses []float64) ([]float64, error) {
	if len(thicknesses) == 0 {
		return nil, fmt.Errorf("fractions from thicknesses: no thicknesses")
	}
	for i, t := range thicknesses {
		if !(t > 0) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("fractions from thicknesses: thickness %d is %g", i, t)
		}
	}
	cum := make([]float64, len(thicknesses))
	floats.CumSum(cum, thicknesses)
	total := cum[len(cum)-1]
	out := cum[:len(cum)-1]
	floats.Scale(1/total, out)
	return out, nil
}
