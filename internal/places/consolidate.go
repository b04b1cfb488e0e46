package places

import (
	"math"
	"time"

	"github.com/banshee-data/places/internal/geo"
)

// Consolidate folds every pending sample into the centroid and duration,
// then empties the buffer.
//
// The batch is reduced to its duration-weighted mean position and total
// duration. A new cluster adopts the batch outright. An established
// cluster blends it in with weight
//
//	newDuration / (newDuration + duration) * ForgettingFactor
//
// renormalises the centroid to unit length, and blends duration with the
// fixed weight ForgettingFactor.
//
// A batch with no positive time-mass leaves the state unchanged. So does a
// batch (or blend) whose mean has no direction, e.g. samples at antipodes.
// The buffer is emptied in every case.
func (c *Cluster) Consolidate() {
	var sum geo.Vec
	var mass float64 // nanoseconds
	for _, s := range c.pending {
		w := float64(s.Duration)
		mass += w
		sum = sum.Add(s.Position.Scale(w))
	}
	n := len(c.pending)
	clear(c.pending)
	c.pending = c.pending[:0]

	if !(mass > 0) {
		if n > 0 {
			logf("%s: skipping consolidation of %d samples with no time-mass", c.id, n)
		}
		return
	}
	newCenter := sum.Scale(1 / mass)

	if c.isNew {
		u, ok := newCenter.Unit()
		if !ok {
			logf("%s: first batch of %d samples has no mean direction, staying new", c.id, n)
			return
		}
		c.center = u
		c.duration = roundDuration(mass)
		c.isNew = false
		return
	}

	f := c.params.ForgettingFactor
	weightNew := mass / (mass + float64(c.duration)) * f
	weightOld := 1 - weightNew
	blended := c.center.Scale(weightOld).Add(newCenter.Scale(weightNew))
	if u, ok := blended.Unit(); ok {
		c.center = u
	} else {
		logf("%s: blended centroid degenerate, keeping %v", c.id, c.center)
	}

	c.duration = roundDuration(float64(c.duration)*(1-f) + mass*f)
}

func roundDuration(ns float64) time.Duration {
	if ns <= 0 {
		return 0
	}
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Round(ns))
}
