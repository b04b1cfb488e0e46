package geo

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Fix is a raw timestamped position report. Point holds longitude and
// latitude in decimal degrees (orb ordering).
type Fix struct {
	Point    orb.Point
	Altitude float64 // metres, not used by the sphere projection
	Time     time.Time
}

// Converter maps fixes to unit vectors on a sphere of fixed radius and back.
// Place clustering is written against this interface so the projection and
// radius can be swapped in tests.
type Converter interface {
	Radius() float64
	ToVector(f Fix) Vec
	ToFix(v Vec) Fix
	ArcDistance(a, b Vec) float64
}

var _ Converter = Sphere{}

// Sphere is a spherical earth model with radius R in metres.
type Sphere struct {
	R float64
}

// NewSphere returns a Sphere with the given radius.
func NewSphere(radius float64) Sphere {
	return Sphere{R: radius}
}

// Radius returns the sphere radius.
func (s Sphere) Radius() float64 { return s.R }

// ToVector projects a fix onto the unit sphere:
// (cosλ·cosφ, sinλ·cosφ, sinφ) with λ longitude and φ latitude.
func (s Sphere) ToVector(f Fix) Vec {
	lambda := f.Point.Lon() * math.Pi / 180
	phi := f.Point.Lat() * math.Pi / 180
	return NewVec(
		math.Cos(lambda)*math.Cos(phi),
		math.Sin(lambda)*math.Cos(phi),
		math.Sin(phi),
	)
}

// ToFix converts a vector back to longitude/latitude. The vector is
// normalised first; a degenerate vector maps to (0, 0).
func (s Sphere) ToFix(v Vec) Fix {
	u, ok := v.Unit()
	if !ok {
		return Fix{}
	}
	z := math.Max(-1, math.Min(1, u.Z))
	lat := math.Asin(z) * 180 / math.Pi
	lon := math.Atan2(u.Y, u.X) * 180 / math.Pi
	return Fix{Point: orb.Point{lon, lat}}
}

// ArcDistance returns the great-circle distance between the directions of
// a and b, in the same units as R.
func (s Sphere) ArcDistance(a, b Vec) float64 {
	return Angle(a, b) * s.R
}
