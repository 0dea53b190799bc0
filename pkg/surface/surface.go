// Package surface defines the half-space primitives that bound lamina cells
// and the registry that owns them. Everything outside this package refers to
// a surface by its Number and resolves it through a Registry on demand.
package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Tolerance is the default absolute tolerance for geometric comparisons.
const Tolerance = 1e-7

// Number identifies a registered surface. Valid numbers are positive.
type Number int

// Ref is a signed surface reference. The magnitude is a Number and the sign
// selects one of the two half-spaces the surface separates. Zero is invalid.
type Ref int

// Number returns the magnitude of the reference.
func (r Ref) Number() Number {
	if r < 0 {
		return Number(-r)
	}
	return Number(r)
}

// Positive reports whether r selects the positive half-space.
func (r Ref) Positive() bool { return r > 0 }

// Neg returns the reference to the opposite half-space.
func (r Ref) Neg() Ref { return -r }

// Valid reports whether r is non-zero.
func (r Ref) Valid() bool { return r != 0 }

// Kind enumerates surface primitives.
type Kind int

const (
	KindPlane Kind = iota
	KindCylinder
	KindCone
)

func (k Kind) String() string {
	switch k {
	case KindPlane:
		return "plane"
	case KindCylinder:
		return "cylinder"
	case KindCone:
		return "cone"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Surface is a closed sum type over Plane, Cylinder and Cone.
type Surface interface {
	Kind() Kind
	// Sense returns the signed distance from p to the surface: positive on
	// the positive half-space, negative on the negative one.
	Sense(p r3.Vec) float64
	surface() // marker method restricting implementations to this package
}

// Plane is the set of points x with (x-Point)·Normal = 0. The positive side
// is the one Normal points to.
type Plane struct {
	Point  r3.Vec `json:"point"`
	Normal r3.Vec `json:"normal"`
}

func (Plane) Kind() Kind { return KindPlane }
func (Plane) surface()   {}

func (p Plane) Sense(x r3.Vec) float64 {
	return r3.Dot(r3.Sub(x, p.Point), p.Normal)
}

// Offset returns the signed distance of the plane from the origin along its
// normal.
func (p Plane) Offset() float64 {
	return r3.Dot(p.Point, p.Normal)
}

func (p Plane) String() string {
	return fmt.Sprintf("plane n=%s d=%g", fmtVec(p.Normal), p.Offset())
}

// Cylinder is an infinite circular cylinder. Outside the radius is positive.
type Cylinder struct {
	AxisPoint r3.Vec  `json:"axis_point"`
	AxisDir   r3.Vec  `json:"axis_dir"`
	Radius    float64 `json:"radius"`
}

func (Cylinder) Kind() Kind { return KindCylinder }
func (Cylinder) surface()   {}

func (c Cylinder) Sense(x r3.Vec) float64 {
	return distanceToLine(x, c.AxisPoint, c.AxisDir) - c.Radius
}

func (c Cylinder) String() string {
	return fmt.Sprintf("cylinder p=%s a=%s r=%g", fmtVec(c.AxisPoint), fmtVec(c.AxisDir), c.Radius)
}

// Cone is a single-sheet circular cone opening from Apex along AxisDir.
// Outside the half-angle (including everything behind the apex) is positive.
type Cone struct {
	Apex      r3.Vec  `json:"apex"`
	AxisDir   r3.Vec  `json:"axis_dir"`
	HalfAngle float64 `json:"half_angle"` // radians
}

func (Cone) Kind() Kind { return KindCone }
func (Cone) surface()   {}

func (c Cone) Sense(x r3.Vec) float64 {
	v := r3.Sub(x, c.Apex)
	l := r3.Norm(v)
	if l == 0 {
		return 0
	}
	cos := math.Max(-1, math.Min(1, r3.Dot(v, c.AxisDir)/l))
	delta := math.Acos(cos) - c.HalfAngle
	if delta >= math.Pi/2 {
		return l
	}
	return l * math.Sin(delta)
}

func (c Cone) String() string {
	return fmt.Sprintf("cone apex=%s a=%s angle=%gdeg", fmtVec(c.Apex), fmtVec(c.AxisDir), c.HalfAngle*180/math.Pi)
}

// normalize validates s and returns it with unit direction vectors.
func normalize(s Surface) (Surface, error) {
	switch v := s.(type) {
	case Plane:
		if r3.Norm(v.Normal) < Tolerance {
			return nil, fmt.Errorf("%w: plane normal is zero", ErrInvalidSurface)
		}
		v.Normal = r3.Unit(v.Normal)
		return v, nil
	case Cylinder:
		if r3.Norm(v.AxisDir) < Tolerance {
			return nil, fmt.Errorf("%w: cylinder axis is zero", ErrInvalidSurface)
		}
		if !(v.Radius > 0) {
			return nil, fmt.Errorf("%w: cylinder radius %g must be positive", ErrInvalidSurface, v.Radius)
		}
		v.AxisDir = r3.Unit(v.AxisDir)
		return v, nil
	case Cone:
		if r3.Norm(v.AxisDir) < Tolerance {
			return nil, fmt.Errorf("%w: cone axis is zero", ErrInvalidSurface)
		}
		if !(v.HalfAngle > 0 && v.HalfAngle < math.Pi/2) {
			return nil, fmt.Errorf("%w: cone half-angle %g outside (0, pi/2)", ErrInvalidSurface, v.HalfAngle)
		}
		v.AxisDir = r3.Unit(v.AxisDir)
		return v, nil
	case nil:
		return nil, fmt.Errorf("%w: nil surface", ErrInvalidSurface)
	default:
		return nil, fmt.Errorf("%w: unsupported surface type %T", ErrInvalidSurface, s)
	}
}

// distanceToLine returns the distance from x to the line through p along the
// unit direction d.
func distanceToLine(x, p, d r3.Vec) float64 {
	w := r3.Sub(x, p)
	return r3.Norm(r3.Sub(w, r3.Scale(r3.Dot(w, d), d)))
}

func fmtVec(v r3.Vec) string {
	return fmt.Sprintf("(%g,%g,%g)", v.X, v.Y, v.Z)
}
