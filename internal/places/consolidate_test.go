package places

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/places/internal/geo"
)

func TestConsolidate_NewClusterAdoption(t *testing.T) {
	t.Parallel()

	c := NewCluster(DefaultParams(), Sample{Position: geo.NewVec(0, 3, 4), Duration: 30 * time.Second}, time.Minute)
	c.Consolidate()

	assert.False(t, c.IsNew())
	assert.Equal(t, 30*time.Second, c.Duration())
	assert.Equal(t, 0, c.PendingLen())
	assert.Empty(t, cmp.Diff(geo.NewVec(0, 0.6, 0.8), c.Center(), approxVec))
}

func TestConsolidate_WeightedBatchMean(t *testing.T) {
	t.Parallel()

	c := NewCluster(DefaultParams(), Sample{Position: geo.NewVec(1, 0, 0), Duration: 30 * time.Second}, 0)
	c.AddSample(Sample{Position: geo.NewVec(0, 1, 0), Duration: 10 * time.Second})
	c.Consolidate()

	want, _ := geo.NewVec(0.75, 0.25, 0).Unit()
	assert.Empty(t, cmp.Diff(want, c.Center(), approxVec))
	assert.Equal(t, 40*time.Second, c.Duration())
}

func TestConsolidate_Scenario(t *testing.T) {
	t.Parallel()

	c := NewCluster(DefaultParams(), Sample{Position: geo.NewVec(1, 0, 0), Duration: 10 * time.Second}, 0)
	c.Consolidate()

	assert.Equal(t, geo.NewVec(1, 0, 0), c.Center())
	assert.Equal(t, 10*time.Second, c.Duration())

	c.AddSample(Sample{Position: geo.NewVec(0, 1, 0), Duration: 10 * time.Second})
	c.Consolidate()

	// weightNew = (10/20)*0.1 = 0.05
	want := geo.NewVec(0.95, 0.05, 0).Scale(1 / math.Sqrt(0.95*0.95+0.05*0.05))
	assert.Empty(t, cmp.Diff(want, c.Center(), approxVec))
	assert.Equal(t, 10*time.Second, c.Duration())
	assert.InDelta(t, 1, c.Center().Norm(), 1e-12)
}

func TestConsolidate_ForgettingFactorIsPerCluster(t *testing.T) {
	t.Parallel()

	run := func(f float64) geo.Vec {
		params := Params{ForgettingFactor: f, Geo: geo.NewSphere(DefaultEarthRadius)}
		c := NewCluster(params, Sample{Position: geo.NewVec(1, 0, 0), Duration: 10 * time.Second}, 0)
		c.Consolidate()
		c.AddSample(Sample{Position: geo.NewVec(0, 1, 0), Duration: 10 * time.Second})
		c.Consolidate()
		return c.Center()
	}

	slow := run(0.1)
	fast := run(0.5)

	// weightNew = 0.25 with factor 0.5
	want, _ := geo.NewVec(0.75, 0.25, 0).Unit()
	assert.Empty(t, cmp.Diff(want, fast, approxVec))
	assert.Greater(t, fast.Y, slow.Y)
}

func TestConsolidate_BlendBoundedness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		old, new time.Duration
	}{
		{"heavy history", 100 * time.Second, 10 * time.Second},
		{"heavy batch", 10 * time.Second, 100 * time.Second},
		{"hours vs seconds", 8 * time.Hour, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := established(t, DefaultParams(), geo.NewVec(0, 0, 1), tt.old)
			c.AddSample(Sample{Position: geo.NewVec(0, 1, 0), Duration: tt.new})
			c.Consolidate()

			lo, hi := min(tt.old, tt.new), max(tt.old, tt.new)
			assert.Greater(t, c.Duration(), lo)
			assert.Less(t, c.Duration(), hi)

			want := time.Duration(math.Round(float64(tt.old)*0.9 + float64(tt.new)*0.1))
			assert.Equal(t, want, c.Duration())
		})
	}
}

func TestConsolidate_BufferDraining(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 5, 100} {
		c := established(t, DefaultParams(), geo.NewVec(1, 0, 0), time.Hour)
		for i := 0; i < n; i++ {
			c.AddSample(Sample{Position: geo.NewVec(1, float64(i)*0.001, 0), Duration: time.Duration(i%3) * time.Second})
		}
		c.Consolidate()
		assert.Equal(t, 0, c.PendingLen(), "n=%d", n)
		assert.Empty(t, c.Snapshot().Pending, "n=%d", n)
	}
}

func TestConsolidate_ZeroMass(t *testing.T) {
	t.Parallel()

	t.Run("empty buffer leaves state unchanged", func(t *testing.T) {
		t.Parallel()
		c := established(t, DefaultParams(), geo.NewVec(0, 1, 0), time.Hour)
		before := c.Snapshot()
		c.Consolidate()
		assert.Equal(t, before, c.Snapshot())
	})

	t.Run("zero-duration samples are discarded", func(t *testing.T) {
		t.Parallel()
		c := established(t, DefaultParams(), geo.NewVec(0, 1, 0), time.Hour)
		c.AddSample(Sample{Position: geo.NewVec(1, 0, 0)})
		c.AddSample(Sample{Position: geo.NewVec(0, 0, 1)})
		c.Consolidate()

		assert.Equal(t, geo.NewVec(0, 1, 0), c.Center())
		assert.Equal(t, time.Hour, c.Duration())
		assert.Equal(t, 0, c.PendingLen())
	})

	t.Run("net negative mass is discarded", func(t *testing.T) {
		t.Parallel()
		c := established(t, DefaultParams(), geo.NewVec(0, 1, 0), time.Hour)
		c.AddSample(Sample{Position: geo.NewVec(1, 0, 0), Duration: -time.Minute})
		c.Consolidate()

		assert.Equal(t, time.Hour, c.Duration())
		assert.GreaterOrEqual(t, c.Duration(), time.Duration(0))
	})

	t.Run("new cluster with zero-duration seed stays new", func(t *testing.T) {
		t.Parallel()
		c := NewCluster(DefaultParams(), Sample{Position: geo.NewVec(1, 0, 0)}, 0)
		c.Consolidate()

		assert.True(t, c.IsNew())
		assert.Equal(t, geo.NewVec(1, 0, 0), c.Center())
		assert.Equal(t, 0, c.PendingLen())

		c.AddSample(Sample{Position: geo.NewVec(0, 1, 0), Duration: time.Second})
		c.Consolidate()
		assert.False(t, c.IsNew())
		assert.Equal(t, geo.NewVec(0, 1, 0), c.Center())
	})
}

func TestConsolidate_AntipodalBatch(t *testing.T) {
	t.Parallel()

	c := NewCluster(DefaultParams(), Sample{Position: geo.NewVec(1, 0, 0), Duration: 5 * time.Second}, 0)
	c.AddSample(Sample{Position: geo.NewVec(-1, 0, 0), Duration: 5 * time.Second})
	c.Consolidate()

	assert.True(t, c.IsNew())
	assert.Equal(t, time.Duration(0), c.Duration())
	for _, v := range []float64{c.Center().X, c.Center().Y, c.Center().Z} {
		assert.False(t, math.IsNaN(v))
	}
}

func TestConsolidate_UnitLengthPreserved(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	s := geo.NewSphere(DefaultEarthRadius)
	c := established(t, DefaultParams(), geo.NewVec(0, 0, 1), time.Hour)

	for round := 0; round < 200; round++ {
		for i := 0; i < 1+rng.Intn(10); i++ {
			lon := rng.Float64()*360 - 180
			lat := rng.Float64()*180 - 90
			v := s.ToVector(geo.Fix{Point: [2]float64{lon, lat}})
			c.AddSample(Sample{Position: v, Duration: time.Duration(1+rng.Intn(600)) * time.Second})
		}
		c.Consolidate()
		require.InDelta(t, 1, c.Center().Norm(), 1e-6, "round %d", round)
		require.GreaterOrEqual(t, c.Duration(), time.Duration(0))
	}
}

func TestConsolidate_ConvergesTowardRepeatedBatches(t *testing.T) {
	t.Parallel()

	target := geo.NewVec(0, 1, 0)
	c := established(t, DefaultParams(), geo.NewVec(1, 0, 0), time.Hour)

	prev := c.DistanceToCenter(target)
	for i := 0; i < 50; i++ {
		c.AddSample(Sample{Position: target, Duration: time.Hour})
		c.Consolidate()
		d := c.DistanceToCenter(target)
		require.Less(t, d, prev, "iteration %d did not move toward the batch", i)
		prev = d
	}
}
