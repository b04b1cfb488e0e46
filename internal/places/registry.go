package places

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/places/internal/geo"
	"github.com/banshee-data/places/internal/timeutil"
)

var (
	// ErrClusterNotFound is returned for an unknown cluster id.
	ErrClusterNotFound = errors.New("cluster not found")
	// ErrDuplicateCluster is returned when restoring an id that is already registered.
	ErrDuplicateCluster = errors.New("cluster already registered")
	// ErrSameCluster is returned when a cluster is asked to move away from itself.
	ErrSameCluster = errors.New("cluster cannot move away from itself")
)

// Registry owns a set of clusters and serialises access to each one.
// Operations on different clusters proceed in parallel.
type Registry struct {
	params Params
	clock  timeutil.Clock

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	cluster *Cluster
}

// Overlap is a pair of clusters closer than a requested distance.
type Overlap struct {
	A, B     string
	Distance float64
}

// NewRegistry creates an empty registry. A nil clock uses the real clock.
func NewRegistry(params Params, clock timeutil.Clock) *Registry {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Registry{
		params:  params.withDefaults(),
		clock:   clock,
		entries: make(map[string]*entry),
	}
}

// Params returns the parameters used for clusters created by the registry.
func (r *Registry) Params() Params { return r.params }

// Create registers a new cluster seeded with seed and returns its id.
func (r *Registry) Create(seed Sample, avgInterval time.Duration) string {
	c := NewCluster(r.params, seed, avgInterval)
	r.mu.Lock()
	r.entries[c.ID()] = &entry{cluster: c}
	r.mu.Unlock()
	return c.ID()
}

// Restore registers a cluster rebuilt from a snapshot.
func (r *Registry) Restore(s Snapshot) error {
	c, err := RestoreCluster(r.params, s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[c.ID()]; exists {
		return fmt.Errorf("%s: %w", c.ID(), ErrDuplicateCluster)
	}
	r.entries[c.ID()] = &entry{cluster: c}
	return nil
}

// Remove drops a cluster. It reports whether the id was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Len returns the number of registered clusters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrClusterNotFound)
	}
	return e, nil
}

// With runs fn with exclusive access to the cluster.
func (r *Registry) With(id string, fn func(*Cluster)) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.cluster)
	return nil
}

// AddSample buffers s on the cluster.
func (r *Registry) AddSample(id string, s Sample) error {
	return r.With(id, func(c *Cluster) { c.AddSample(s) })
}

// Consolidate consolidates one cluster and returns its new state.
func (r *Registry) Consolidate(id string) (Snapshot, error) {
	var snap Snapshot
	err := r.With(id, func(c *Cluster) {
		c.Consolidate()
		snap = c.Snapshot()
	})
	return snap, err
}

// ConsolidateAll consolidates every registered cluster, in parallel, and
// returns their snapshots ordered by id. Clusters not reached before ctx is
// cancelled are skipped and ctx's error is returned.
func (r *Registry) ConsolidateAll(ctx context.Context) ([]Snapshot, error) {
	ids := r.IDs()
	snaps := make([]Snapshot, len(ids))
	done := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snap, err := r.Consolidate(id)
			if errors.Is(err, ErrClusterNotFound) {
				// Removed concurrently.
				return nil
			}
			snaps[i], done[i] = snap, true
			return err
		})
	}
	err := g.Wait()

	out := snaps[:0]
	for i := range snaps {
		if done[i] {
			out = append(out, snaps[i])
		}
	}
	return out, err
}

// MoveAway moves cluster id away from cluster otherID by distance.
// Both clusters are locked, in id order.
func (r *Registry) MoveAway(id, otherID string, distance float64) error {
	if id == otherID {
		return ErrSameCluster
	}
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	o, err := r.lookup(otherID)
	if err != nil {
		return err
	}
	first, second := e, o
	if otherID < id {
		first, second = o, e
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	return e.cluster.MoveAwayCluster(o.cluster, distance)
}

// Snapshot returns a copy of one cluster's state.
func (r *Registry) Snapshot(id string) (Snapshot, error) {
	var snap Snapshot
	err := r.With(id, func(c *Cluster) { snap = c.Snapshot() })
	return snap, err
}

// Snapshots returns copies of every cluster ordered by id.
func (r *Registry) Snapshots() []Snapshot {
	ids := r.IDs()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if snap, err := r.Snapshot(id); err == nil {
			out = append(out, snap)
		}
	}
	return out
}

// Nearest returns the cluster whose centroid is closest to v.
func (r *Registry) Nearest(v geo.Vec) (id string, distance float64, ok bool) {
	distance = math.Inf(1)
	for _, snap := range r.Snapshots() {
		d := r.params.Geo.ArcDistance(snap.Center, v)
		if d < distance {
			id, distance, ok = snap.ID, d, true
		}
	}
	return id, distance, ok
}

// Overlaps lists cluster pairs whose centroids are closer than within,
// ordered by distance.
func (r *Registry) Overlaps(within float64) []Overlap {
	snaps := r.Snapshots()
	var out []Overlap
	for i := 0; i < len(snaps); i++ {
		for j := i + 1; j < len(snaps); j++ {
			d := r.params.Geo.ArcDistance(snaps[i].Center, snaps[j].Center)
			if d < within {
				out = append(out, Overlap{A: snaps[i].ID, B: snaps[j].ID, Distance: d})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Run consolidates all clusters every interval until ctx is done. Each
// round's snapshots are passed to onConsolidated when it is non-nil.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onConsolidated func([]Snapshot)) error {
	if interval <= 0 {
		return fmt.Errorf("consolidation interval must be positive, got %v", interval)
	}
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			start := r.clock.Now()
			snaps, err := r.ConsolidateAll(ctx)
			if err != nil {
				return err
			}
			logf("consolidated %d clusters in %v", len(snaps), r.clock.Since(start))
			if onConsolidated != nil {
				onConsolidated(snaps)
			}
		}
	}
}
