package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DegenerateNorm is the norm below which a vector has no usable direction.
// Unit and the repulsion fallback treat anything shorter as zero.
const DegenerateNorm = 1e-12

// Vec is a Cartesian 3-vector. Place centroids are unit vectors on the
// sphere; batch means and blends may be shorter until normalised.
type Vec r3.Vec

// NewVec builds a Vec from its components.
func NewVec(x, y, z float64) Vec {
	return Vec{X: x, Y: y, Z: z}
}

func (v Vec) r3() r3.Vec { return r3.Vec(v) }

// Add returns v+u.
func (v Vec) Add(u Vec) Vec { return Vec(r3.Add(v.r3(), u.r3())) }

// Sub returns v-u.
func (v Vec) Sub(u Vec) Vec { return Vec(r3.Sub(v.r3(), u.r3())) }

// Scale returns f*v.
func (v Vec) Scale(f float64) Vec { return Vec(r3.Scale(f, v.r3())) }

// Dot returns the dot product of v and u.
func (v Vec) Dot(u Vec) float64 { return r3.Dot(v.r3(), u.r3()) }

// Cross returns the cross product v×u.
func (v Vec) Cross(u Vec) Vec { return Vec(r3.Cross(v.r3(), u.r3())) }

// Norm returns the Euclidean length of v.
func (v Vec) Norm() float64 { return r3.Norm(v.r3()) }

// Unit returns v divided by its Euclidean norm. When the norm is below
// DegenerateNorm (or not finite) v is returned unchanged with ok=false.
func (v Vec) Unit() (u Vec, ok bool) {
	n := v.Norm()
	if n < DegenerateNorm || math.IsNaN(n) || math.IsInf(n, 0) {
		return v, false
	}
	return v.Scale(1 / n), true
}

// Reject returns the component of v orthogonal to onto. onto must be a
// unit vector.
func (v Vec) Reject(onto Vec) Vec {
	return v.Sub(onto.Scale(v.Dot(onto)))
}

// Orthogonal returns a unit vector perpendicular to v. The result is
// deterministic: v is crossed with the coordinate axis it is least
// aligned with. A degenerate v yields the X axis.
func Orthogonal(v Vec) Vec {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	var axis Vec
	switch {
	case ax <= ay && ax <= az:
		axis = NewVec(1, 0, 0)
	case ay <= az:
		axis = NewVec(0, 1, 0)
	default:
		axis = NewVec(0, 0, 1)
	}
	u, ok := v.Cross(axis).Unit()
	if !ok {
		return NewVec(1, 0, 0)
	}
	return u
}

// Angle returns the angle in radians between a and b, in [0, π].
// atan2 keeps small and near-antipodal angles accurate where acos of the
// dot product would lose precision.
func Angle(a, b Vec) float64 {
	return math.Atan2(a.Cross(b).Norm(), a.Dot(b))
}
