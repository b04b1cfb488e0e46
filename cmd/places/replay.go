package main

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/places/internal/places"
)

// snapshotSaver persists cluster snapshots after each consolidation round.
type snapshotSaver interface {
	SaveCluster(ctx context.Context, snap places.Snapshot) error
}

type replayOptions struct {
	AssignRadius        float64
	OverlapDistance     float64
	ConsolidateInterval time.Duration
	AvgInterval         time.Duration
}

type replayStats struct {
	Fixes   int
	Created int
	Rounds  int
	Moves   int
	Saved   int
}

// replayer feeds fixes into a registry and drives consolidation from fix
// timestamps rather than wall-clock time.
type replayer struct {
	reg   *places.Registry
	store snapshotSaver
	opts  replayOptions

	next  time.Time
	stats replayStats
}

func newReplayer(reg *places.Registry, store snapshotSaver, opts replayOptions) (*replayer, error) {
	if opts.ConsolidateInterval <= 0 {
		return nil, fmt.Errorf("consolidate interval must be positive, got %v", opts.ConsolidateInterval)
	}
	if opts.AssignRadius < 0 || opts.OverlapDistance < 0 {
		return nil, fmt.Errorf("radius and overlap distance must be non-negative")
	}
	return &replayer{reg: reg, store: store, opts: opts}, nil
}

// Run replays recs in order, then runs a final consolidation round.
func (p *replayer) Run(ctx context.Context, recs []record) (replayStats, error) {
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return p.stats, err
		}
		if err := p.step(ctx, rec); err != nil {
			return p.stats, err
		}
	}
	if err := p.round(ctx); err != nil {
		return p.stats, err
	}
	return p.stats, nil
}

func (p *replayer) step(ctx context.Context, rec record) error {
	t := rec.Fix.Time
	if p.next.IsZero() {
		p.next = t.Add(p.opts.ConsolidateInterval)
	}
	if !t.Before(p.next) {
		if err := p.round(ctx); err != nil {
			return err
		}
		// Skip whole intervals in which no fixes arrived.
		steps := t.Sub(p.next)/p.opts.ConsolidateInterval + 1
		p.next = p.next.Add(steps * p.opts.ConsolidateInterval)
	}

	sample := places.Sample{
		Position: p.reg.Params().Geo.ToVector(rec.Fix),
		Duration: rec.Dwell,
	}
	p.stats.Fixes++

	if id, d, ok := p.reg.Nearest(sample.Position); ok && d <= p.opts.AssignRadius {
		return p.reg.AddSample(id, sample)
	}
	id := p.reg.Create(sample, p.opts.AvgInterval)
	p.stats.Created++
	logf("seeded %s at %.6f,%.6f", id, rec.Fix.Point.Lat(), rec.Fix.Point.Lon())
	return nil
}

// round consolidates every cluster, separates overlapping pairs and saves
// the result.
func (p *replayer) round(ctx context.Context) error {
	if _, err := p.reg.ConsolidateAll(ctx); err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	p.stats.Rounds++

	if p.opts.OverlapDistance > 0 {
		if err := p.separate(); err != nil {
			return err
		}
	}

	if p.store == nil {
		return nil
	}
	for _, snap := range p.reg.Snapshots() {
		if err := p.store.SaveCluster(ctx, snap); err != nil {
			return fmt.Errorf("save %s: %w", snap.ID, err)
		}
		p.stats.Saved++
	}
	return nil
}

// separate moves the newer or lighter cluster of each overlapping pair
// away from the other. Pairs are handled once per round in order of
// increasing distance.
func (p *replayer) separate() error {
	for _, o := range p.reg.Overlaps(p.opts.OverlapDistance) {
		a, err := p.reg.Snapshot(o.A)
		if err != nil {
			return err
		}
		b, err := p.reg.Snapshot(o.B)
		if err != nil {
			return err
		}
		mover, anchor := pickMover(a, b)
		if err := p.reg.MoveAway(mover, anchor, p.opts.OverlapDistance); err != nil {
			return fmt.Errorf("move %s away from %s: %w", mover, anchor, err)
		}
		p.stats.Moves++
		logf("moved %s away from %s (was %.1fm)", mover, anchor, o.Distance)
	}
	return nil
}

// pickMover returns the id of the cluster to move and the one it moves away
// from. New clusters move before established ones, then the one with less
// accumulated duration. Ties go to the larger id.
func pickMover(a, b places.Snapshot) (mover, anchor string) {
	switch {
	case a.IsNew != b.IsNew:
		if a.IsNew {
			return a.ID, b.ID
		}
		return b.ID, a.ID
	case a.Duration != b.Duration:
		if a.Duration < b.Duration {
			return a.ID, b.ID
		}
		return b.ID, a.ID
	case a.ID > b.ID:
		return a.ID, b.ID
	default:
		return b.ID, a.ID
	}
}
