package places

import (
	"errors"
	"time"

	"github.com/banshee-data/places/internal/geo"
)

// Snapshot is a detached copy of a cluster's state, used for reporting and
// persistence.
type Snapshot struct {
	ID          string
	Center      geo.Vec
	Duration    time.Duration
	AvgInterval time.Duration
	IsNew       bool
	Pending     []Sample
}

// Snapshot copies the cluster state. The pending slice is copied, so the
// snapshot stays valid after further AddSample or Consolidate calls.
func (c *Cluster) Snapshot() Snapshot {
	var pending []Sample
	if len(c.pending) > 0 {
		pending = make([]Sample, len(c.pending))
		copy(pending, c.pending)
	}
	return Snapshot{
		ID:          c.id,
		Center:      c.center,
		Duration:    c.duration,
		AvgInterval: c.avgInterval,
		IsNew:       c.isNew,
		Pending:     pending,
	}
}

// RestoreCluster rebuilds a cluster from a snapshot. Negative durations in
// the snapshot are clamped to zero.
func RestoreCluster(params Params, s Snapshot) (*Cluster, error) {
	if s.ID == "" {
		return nil, errors.New("snapshot has no cluster id")
	}
	c := &Cluster{
		id:          s.ID,
		params:      params.withDefaults(),
		center:      s.Center,
		duration:    max(s.Duration, 0),
		avgInterval: s.AvgInterval,
		isNew:       s.IsNew,
		pending:     make([]Sample, len(s.Pending), max(len(s.Pending), 8)),
	}
	copy(c.pending, s.Pending)
	return c, nil
}
