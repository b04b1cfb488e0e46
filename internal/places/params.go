package places

import (
	"fmt"

	"github.com/banshee-data/places/internal/config"
	"github.com/banshee-data/places/internal/geo"
)

// Defaults used when Params fields are left zero.
const (
	// DefaultForgettingFactor caps how far one consolidation can move an
	// established centroid.
	DefaultForgettingFactor = 0.1
	// DefaultEarthRadius is the sphere radius in metres.
	DefaultEarthRadius = 6378100.0
)

// Params is the immutable configuration shared by clusters. It is copied
// into each Cluster at construction, so clusters built with different
// Params coexist independently.
type Params struct {
	// ForgettingFactor in (0, 1] scales the weight of each new batch and
	// is the fixed weight of the duration blend.
	ForgettingFactor float64
	// Geo converts fixes to unit vectors and supplies the sphere radius
	// used to turn linear distances into angles.
	Geo geo.Converter
}

// DefaultParams returns Params with the default forgetting factor and a
// sphere of DefaultEarthRadius.
func DefaultParams() Params {
	return Params{
		ForgettingFactor: DefaultForgettingFactor,
		Geo:              geo.NewSphere(DefaultEarthRadius),
	}
}

// ParamsFromConfig builds Params from tuning configuration.
func ParamsFromConfig(cfg *config.TuningConfig) Params {
	if cfg == nil {
		return DefaultParams()
	}
	return Params{
		ForgettingFactor: cfg.GetForgettingFactor(),
		Geo:              geo.NewSphere(cfg.GetEarthRadius()),
	}
}

// Validate reports whether p is usable as-is.
func (p Params) Validate() error {
	if !(p.ForgettingFactor > 0 && p.ForgettingFactor <= 1) {
		return fmt.Errorf("forgetting factor must be in (0, 1], got %v", p.ForgettingFactor)
	}
	if p.Geo == nil {
		return fmt.Errorf("geo converter is nil")
	}
	if !(p.Geo.Radius() > 0) {
		return fmt.Errorf("sphere radius must be positive, got %v", p.Geo.Radius())
	}
	return nil
}

// withDefaults fills unusable fields with defaults.
func (p Params) withDefaults() Params {
	if !(p.ForgettingFactor > 0 && p.ForgettingFactor <= 1) {
		p.ForgettingFactor = DefaultForgettingFactor
	}
	if p.Geo == nil || !(p.Geo.Radius() > 0) {
		p.Geo = geo.NewSphere(DefaultEarthRadius)
	}
	return p
}
