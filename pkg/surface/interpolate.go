package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compatible reports whether secondary can be reached from primary by linear
// interpolation: same kind, planes sharing a normal direction, cylinders
// sharing an axis line, cones sharing apex and axis direction.
func Compatible(primary, secondary Surface, tol float64) error {
	if primary == nil || secondary == nil {
		return fmt.Errorf("%w: nil surface", ErrIncompatiblePair)
	}
	incompatible := func(reason string) error {
		return &IncompatibleError{Primary: primary.Kind(), Secondary: secondary.Kind(), Reason: reason}
	}
	if primary.Kind() != secondary.Kind() {
		return incompatible("kinds differ")
	}

	switch p := primary.(type) {
	case Plane:
		s := secondary.(Plane)
		if !sameDirection(p.Normal, s.Normal, tol) {
			return incompatible("plane normals are not parallel and co-directed")
		}
	case Cylinder:
		s := secondary.(Cylinder)
		if !parallel(p.AxisDir, s.AxisDir, tol) {
			return incompatible("cylinder axes are not parallel")
		}
		if distanceToLine(s.AxisPoint, p.AxisPoint, p.AxisDir) > tol {
			return incompatible("cylinders are not coaxial")
		}
	case Cone:
		s := secondary.(Cone)
		if r3.Norm(r3.Sub(p.Apex, s.Apex)) > tol {
			return incompatible("cone apexes differ")
		}
		if !sameDirection(p.AxisDir, s.AxisDir, tol) {
			return incompatible("cone axes differ")
		}
	default:
		return incompatible(fmt.Sprintf("unsupported surface type %T", primary))
	}
	return nil
}

// Interpolate returns the surface a fraction f of the way from primary to
// secondary. The result inherits the primary's orientation, so a signed
// reference means the same side of every surface in the family.
func Interpolate(primary, secondary Surface, f, tol float64) (Surface, error) {
	if err := Compatible(primary, secondary, tol); err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("interpolate: fraction %v is not finite", f)
	}

	switch p := primary.(type) {
	case Plane:
		s := secondary.(Plane)
		d := r3.Dot(r3.Sub(s.Point, p.Point), p.Normal)
		return Plane{
			Point:  r3.Add(p.Point, r3.Scale(f*d, p.Normal)),
			Normal: p.Normal,
		}, nil
	case Cylinder:
		s := secondary.(Cylinder)
		return Cylinder{
			AxisPoint: p.AxisPoint,
			AxisDir:   p.AxisDir,
			Radius:    lerp(p.Radius, s.Radius, f),
		}, nil
	case Cone:
		s := secondary.(Cone)
		return Cone{
			Apex:      p.Apex,
			AxisDir:   p.AxisDir,
			HalfAngle: lerp(p.HalfAngle, s.HalfAngle, f),
		}, nil
	}
	// Compatible rejects every other type.
	return nil, fmt.Errorf("interpolate: unsupported surface type %T", primary)
}

func lerp(a, b, f float64) float64 {
	return a + f*(b-a)
}

// sameDirection assumes unit vectors.
func sameDirection(a, b r3.Vec, tol float64) bool {
	return scalar.EqualWithinAbs(r3.Dot(a, b), 1, tol)
}

func parallel(a, b r3.Vec, tol float64) bool {
	return scalar.EqualWithinAbs(math.Abs(r3.Dot(a, b)), 1, tol)
}
