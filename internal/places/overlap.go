package places

import (
	"fmt"
	"math"

	"github.com/banshee-data/places/internal/geo"
)

// MoveAwayCluster places c's centroid on the great circle through both
// centroids, exactly distance (an arc length in sphere-radius units) away
// from other's centroid, on c's side. Only c is modified.
//
// No point is further than π·R from other's centroid, so a longer distance
// is rejected with ErrDistanceTooLarge; π·R itself lands on the antipode.
// With distance 0 the centroid collapses onto other's. When the two
// centroids coincide or are antipodal there is no unique great circle and
// a deterministic direction orthogonal to other's centroid is used.
func (c *Cluster) MoveAwayCluster(other *Cluster, distance float64) error {
	if other == nil {
		return ErrNilCluster
	}
	if distance < 0 || math.IsNaN(distance) {
		return fmt.Errorf("%w: %v", ErrNegativeDistance, distance)
	}
	anchor, ok := other.center.Unit()
	if !ok {
		return fmt.Errorf("%s: %w", other.id, ErrDegenerateCenter)
	}

	radian := distance / c.params.Geo.Radius()
	if radian > math.Pi {
		return fmt.Errorf("%w: %v > %v", ErrDistanceTooLarge, distance, math.Pi*c.params.Geo.Radius())
	}
	if radian == 0 {
		c.center = anchor
		return nil
	}

	own, _ := c.center.Unit()
	dir, ok := own.Reject(anchor).Unit()
	if !ok {
		dir = geo.Orthogonal(anchor)
		logf("%s: no bearing away from %s, moving along %v", c.id, other.id, dir)
	}

	c.center = anchor.Scale(math.Cos(radian)).Add(dir.Scale(math.Sin(radian)))
	return nil
}
