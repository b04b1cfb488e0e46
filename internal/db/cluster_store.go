package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/places/internal/geo"
	"github.com/banshee-data/places/internal/places"
)

// ErrClusterNotFound is returned when no row exists for a cluster id.
var ErrClusterNotFound = errors.New("place cluster not found")

// ClusterStore persists place cluster snapshots, including their pending
// samples.
type ClusterStore struct {
	db *DB
}

// NewClusterStore returns a store backed by db.
func NewClusterStore(db *DB) *ClusterStore {
	return &ClusterStore{db: db}
}

// SaveCluster inserts or replaces a cluster and its pending samples.
func (s *ClusterStore) SaveCluster(ctx context.Context, snap places.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", snap.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO place_clusters (
			cluster_id, center_x, center_y, center_z,
			duration_ns, avg_interval_ns, is_new, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(cluster_id) DO UPDATE SET
			center_x = excluded.center_x,
			center_y = excluded.center_y,
			center_z = excluded.center_z,
			duration_ns = excluded.duration_ns,
			avg_interval_ns = excluded.avg_interval_ns,
			is_new = excluded.is_new,
			updated_at = CURRENT_TIMESTAMP`,
		snap.ID, snap.Center.X, snap.Center.Y, snap.Center.Z,
		int64(snap.Duration), int64(snap.AvgInterval), snap.IsNew,
	)
	if err != nil {
		return fmt.Errorf("upsert cluster %s: %w", snap.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM place_pending_samples WHERE cluster_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("clear pending samples for %s: %w", snap.ID, err)
	}

	if len(snap.Pending) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO place_pending_samples (cluster_id, seq, x, y, z, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare pending insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range snap.Pending {
			if _, err := stmt.ExecContext(ctx, snap.ID, i, p.Position.X, p.Position.Y, p.Position.Z, int64(p.Duration)); err != nil {
				return fmt.Errorf("insert pending sample %d for %s: %w", i, snap.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", snap.ID, err)
	}
	return nil
}

// LoadCluster reads one cluster snapshot.
func (s *ClusterStore) LoadCluster(ctx context.Context, id string) (places.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cluster_id, center_x, center_y, center_z, duration_ns, avg_interval_ns, is_new
		FROM place_clusters WHERE cluster_id = ?`, id)

	snap, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return places.Snapshot{}, fmt.Errorf("%s: %w", id, ErrClusterNotFound)
	}
	if err != nil {
		return places.Snapshot{}, fmt.Errorf("load cluster %s: %w", id, err)
	}

	if snap.Pending, err = s.loadPending(ctx, id); err != nil {
		return places.Snapshot{}, err
	}
	return snap, nil
}

// ListClusters reads every cluster snapshot ordered by id.
func (s *ClusterStore) ListClusters(ctx context.Context) ([]places.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, center_x, center_y, center_z, duration_ns, avg_interval_ns, is_new
		FROM place_clusters ORDER BY cluster_id`)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}

	var out []places.Snapshot
	for rows.Next() {
		snap, err := scanCluster(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	rows.Close()

	// Pending samples are read after the cluster cursor is closed; the pool
	// holds a single connection.
	for i := range out {
		if out[i].Pending, err = s.loadPending(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteCluster removes a cluster and its pending samples.
func (s *ClusterStore) DeleteCluster(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM place_clusters WHERE cluster_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete cluster %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cluster %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrClusterNotFound)
	}
	return nil
}

func (s *ClusterStore) loadPending(ctx context.Context, id string) ([]places.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT x, y, z, duration_ns FROM place_pending_samples
		WHERE cluster_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load pending samples for %s: %w", id, err)
	}
	defer rows.Close()

	var out []places.Sample
	for rows.Next() {
		var x, y, z float64
		var d int64
		if err := rows.Scan(&x, &y, &z, &d); err != nil {
			return nil, fmt.Errorf("scan pending sample for %s: %w", id, err)
		}
		out = append(out, places.Sample{Position: geo.NewVec(x, y, z), Duration: time.Duration(d)})
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCluster(row rowScanner) (places.Snapshot, error) {
	var snap places.Snapshot
	var x, y, z float64
	var d, avg int64
	if err := row.Scan(&snap.ID, &x, &y, &z, &d, &avg, &snap.IsNew); err != nil {
		return places.Snapshot{}, err
	}
	snap.Center = geo.NewVec(x, y, z)
	snap.Duration = time.Duration(d)
	snap.AvgInterval = time.Duration(avg)
	return snap, nil
}
