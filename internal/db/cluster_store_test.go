package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/places/internal/geo"
	"github.com/banshee-data/places/internal/monitoring"
	"github.com/banshee-data/places/internal/places"
)

// setupTestDB opens a migrated database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	db, err := Open(filepath.Join(t.TempDir(), "places.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_MigratesToLatest(t *testing.T) {
	db := setupTestDB(t)

	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), latest)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, latest, version)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp())

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.db")
	ctx := context.Background()

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewClusterStore(db).SaveCluster(ctx, places.Snapshot{ID: "plc_keep", Center: geo.NewVec(0, 0, 1)}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	snap, err := NewClusterStore(db).LoadCluster(ctx, "plc_keep")
	require.NoError(t, err)
	assert.Equal(t, geo.NewVec(0, 0, 1), snap.Center)
}

func TestClusterStore_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewClusterStore(db)
	ctx := context.Background()

	c := places.NewCluster(places.DefaultParams(), places.Sample{Position: geo.NewVec(1, 0, 0), Duration: time.Minute}, 30*time.Second)
	c.Consolidate()
	c.AddSample(places.Sample{Position: geo.NewVec(0, 1, 0), Duration: 2 * time.Minute})
	c.AddSample(places.Sample{Position: geo.NewVec(0, 0, 1), Duration: 3 * time.Minute})
	want := c.Snapshot()

	require.NoError(t, store.SaveCluster(ctx, want))

	got, err := store.LoadCluster(ctx, c.ID())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadCluster mismatch (-want +got):\n%s", diff)
	}

	// Restored clusters continue where they left off.
	restored, err := places.RestoreCluster(places.DefaultParams(), got)
	require.NoError(t, err)
	restored.Consolidate()
	c.Consolidate()
	if diff := cmp.Diff(c.Snapshot(), restored.Snapshot()); diff != "" {
		t.Errorf("restored cluster diverged (-want +got):\n%s", diff)
	}
}

func TestClusterStore_UpsertReplacesPending(t *testing.T) {
	db := setupTestDB(t)
	store := NewClusterStore(db)
	ctx := context.Background()

	snap := places.Snapshot{
		ID:       "plc_upsert",
		Center:   geo.NewVec(1, 0, 0),
		Duration: time.Hour,
		Pending: []places.Sample{
			{Position: geo.NewVec(1, 0, 0), Duration: time.Second},
			{Position: geo.NewVec(0, 1, 0), Duration: time.Second},
		},
	}
	require.NoError(t, store.SaveCluster(ctx, snap))

	snap.Duration = 2 * time.Hour
	snap.Pending = nil
	require.NoError(t, store.SaveCluster(ctx, snap))

	got, err := store.LoadCluster(ctx, "plc_upsert")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, got.Duration)
	assert.Empty(t, got.Pending)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM place_clusters`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestClusterStore_ListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	store := NewClusterStore(db)
	ctx := context.Background()

	for _, id := range []string{"plc_c", "plc_a", "plc_b"} {
		require.NoError(t, store.SaveCluster(ctx, places.Snapshot{
			ID:      id,
			Center:  geo.NewVec(0, 1, 0),
			IsNew:   id == "plc_b",
			Pending: []places.Sample{{Position: geo.NewVec(0, 1, 0), Duration: time.Second}},
		}))
	}

	list, err := store.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "plc_a", list[0].ID)
	assert.Equal(t, "plc_b", list[1].ID)
	assert.True(t, list[1].IsNew)
	assert.False(t, list[0].IsNew)
	assert.Len(t, list[2].Pending, 1)

	require.NoError(t, store.DeleteCluster(ctx, "plc_b"))
	assert.ErrorIs(t, store.DeleteCluster(ctx, "plc_b"), ErrClusterNotFound)

	_, err = store.LoadCluster(ctx, "plc_b")
	assert.ErrorIs(t, err, ErrClusterNotFound)

	// Pending rows cascade with the cluster.
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM place_pending_samples WHERE cluster_id = 'plc_b'`).Scan(&n))
	assert.Equal(t, 0, n)
}
