package places

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/places/internal/geo"
)

var (
	// ErrNilCluster is returned when an operation is given a nil peer.
	ErrNilCluster = errors.New("cluster is nil")
	// ErrNegativeDistance is returned for a negative or NaN repulsion distance.
	ErrNegativeDistance = errors.New("distance must be non-negative")
	// ErrDistanceTooLarge is returned for a repulsion distance longer than
	// half the sphere's circumference.
	ErrDistanceTooLarge = errors.New("distance exceeds half the circumference")
	// ErrDegenerateCenter is returned when a peer centroid has no direction.
	ErrDegenerateCenter = errors.New("cluster center has zero length")
)

// Sample is one buffered observation: a position on the unit sphere and the
// dwell time it stands for.
type Sample struct {
	Position geo.Vec
	Duration time.Duration
}

// Cluster is the running belief about one place: a unit-vector centroid, the
// accumulated dwell time behind it, and samples waiting to be folded in.
//
// A Cluster is not safe for concurrent use.
type Cluster struct {
	id          string
	params      Params
	center      geo.Vec
	duration    time.Duration
	avgInterval time.Duration
	isNew       bool
	pending     []Sample
}

// NewCluster creates a cluster seeded with its first observation. The
// centroid starts at the seed's direction and the seed is buffered as the
// first pending sample; nothing is blended until the first Consolidate.
func NewCluster(params Params, seed Sample, avgInterval time.Duration) *Cluster {
	if err := params.Validate(); err != nil {
		logf("invalid params, using defaults: %v", err)
	}
	center, _ := seed.Position.Unit()
	c := &Cluster{
		id:          fmt.Sprintf("plc_%s", uuid.NewString()),
		params:      params.withDefaults(),
		center:      center,
		avgInterval: avgInterval,
		isNew:       true,
		pending:     make([]Sample, 0, 8),
	}
	c.pending = append(c.pending, seed)
	return c
}

// ID returns the cluster identifier.
func (c *Cluster) ID() string { return c.id }

// Center returns the current centroid.
func (c *Cluster) Center() geo.Vec { return c.center }

// Duration returns the accumulated time-mass.
func (c *Cluster) Duration() time.Duration { return c.duration }

// AvgInterval returns the average sample interval given at construction.
func (c *Cluster) AvgInterval() time.Duration { return c.avgInterval }

// IsNew reports whether the cluster has never been consolidated.
func (c *Cluster) IsNew() bool { return c.isNew }

// Params returns the parameters the cluster was built with.
func (c *Cluster) Params() Params { return c.params }

// PendingLen returns the number of buffered samples.
func (c *Cluster) PendingLen() int { return len(c.pending) }

// AddSample buffers an observation for the next Consolidate. Samples are
// kept in arrival order and are not validated; submitting the same sample
// twice counts it twice.
func (c *Cluster) AddSample(s Sample) {
	c.pending = append(c.pending, s)
}

// DistanceToCenter returns the great-circle distance from the centroid to v.
func (c *Cluster) DistanceToCenter(v geo.Vec) float64 {
	return c.params.Geo.ArcDistance(c.center, v)
}

// DistanceToCluster returns the great-circle distance between two centroids.
func (c *Cluster) DistanceToCluster(other *Cluster) float64 {
	if other == nil {
		return math.Inf(1)
	}
	return c.params.Geo.ArcDistance(c.center, other.center)
}

// PassThreshold reports whether the accumulated time-mass reaches d.
func (c *Cluster) PassThreshold(d time.Duration) bool {
	return c.duration >= d
}

// Absorb merges other into c: centroids are averaged by time-mass and
// renormalised, durations add, and other's pending samples are appended to
// c's buffer. other is left untouched. A new c takes other's state outright.
func (c *Cluster) Absorb(other *Cluster) {
	if other == nil || other == c {
		return
	}
	c.pending = append(c.pending, other.pending...)

	if c.isNew {
		if !other.isNew {
			c.center = other.center
			c.duration = other.duration
			c.isNew = false
		}
		return
	}

	total := float64(c.duration) + float64(other.duration)
	if total <= 0 {
		return
	}
	wSelf := float64(c.duration) / total
	merged := c.center.Scale(wSelf).Add(other.center.Scale(1 - wSelf))
	if u, ok := merged.Unit(); ok {
		c.center = u
	} else {
		logf("%s absorb of %s produced a degenerate centroid, keeping %v", c.id, other.id, c.center)
	}
	c.duration += other.duration
}
