// Command places replays a CSV of location fixes through the online place
// clusterer and prints the resulting places.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/places/internal/config"
	"github.com/banshee-data/places/internal/db"
	"github.com/banshee-data/places/internal/monitoring"
	"github.com/banshee-data/places/internal/places"
	"github.com/banshee-data/places/internal/timeutil"
	"github.com/banshee-data/places/internal/version"
)

var logf = monitoring.Component("replay")

func main() {
	configPath := flag.String("config", "", "Path to tuning config JSON (defaults built in)")
	dbPath := flag.String("db", "", "SQLite database for cluster snapshots (empty keeps clusters in memory)")
	input := flag.String("input", "-", "CSV of lat,lon,alt,unix_ms,dwell_s fixes ('-' for stdin)")
	radius := flag.Float64("radius", 0, "Assignment radius in metres (overrides config when > 0)")
	overlap := flag.Float64("overlap", 0, "Overlap distance in metres (overrides config when > 0)")
	significant := flag.Duration("significant", 30*time.Minute, "Accumulated dwell at which a place is reported as significant")
	quiet := flag.Bool("quiet", false, "Suppress diagnostic logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *quiet {
		monitoring.SetLogger(nil)
	}

	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	opts := replayOptions{
		AssignRadius:        cfg.GetAssignRadius(),
		OverlapDistance:     cfg.GetOverlapDistance(),
		ConsolidateInterval: cfg.GetConsolidateInterval(),
		AvgInterval:         cfg.GetDefaultAvgInterval(),
	}
	if *radius > 0 {
		opts.AssignRadius = *radius
	}
	if *overlap > 0 {
		opts.OverlapDistance = *overlap
	}

	params := places.ParamsFromConfig(cfg)
	if err := params.Validate(); err != nil {
		log.Fatalf("invalid parameters: %v", err)
	}

	recs, err := loadInput(*input)
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := places.NewRegistry(params, timeutil.RealClock{})

	var store snapshotSaver
	if *dbPath != "" {
		database, err := db.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()

		cs := db.NewClusterStore(database)
		if err := restore(ctx, reg, cs); err != nil {
			log.Fatalf("failed to restore clusters: %v", err)
		}
		store = cs
	}

	p, err := newReplayer(reg, store, opts)
	if err != nil {
		log.Fatalf("invalid replay options: %v", err)
	}

	start := time.Now()
	stats, err := p.Run(ctx, recs)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	logf("replayed %d fixes in %v", stats.Fixes, time.Since(start))

	if err := printSummary(os.Stdout, reg, stats, *significant); err != nil {
		log.Fatalf("failed to print summary: %v", err)
	}
}

func loadInput(path string) ([]record, error) {
	if path == "-" {
		return readFixes(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFixes(f)
}

// restore loads previously saved clusters into reg.
func restore(ctx context.Context, reg *places.Registry, cs *db.ClusterStore) error {
	snaps, err := cs.ListClusters(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if err := reg.Restore(snap); err != nil {
			return err
		}
	}
	if len(snaps) > 0 {
		logf("restored %d clusters", len(snaps))
	}
	return nil
}

// printSummary writes replay counters and one CSV row per place. A place
// is significant once its accumulated dwell passes the threshold.
func printSummary(w io.Writer, reg *places.Registry, stats replayStats, threshold time.Duration) error {
	fmt.Fprintf(w, "fixes=%d clusters=%d created=%d rounds=%d moves=%d saved=%d\n",
		stats.Fixes, reg.Len(), stats.Created, stats.Rounds, stats.Moves, stats.Saved)
	fmt.Fprintln(w, "id,lat,lon,duration_s,new,significant")

	geo := reg.Params().Geo
	for _, id := range reg.IDs() {
		var snap places.Snapshot
		var significant bool
		err := reg.With(id, func(c *places.Cluster) {
			snap = c.Snapshot()
			significant = c.PassThreshold(threshold)
		})
		if err != nil {
			return err
		}
		fix := geo.ToFix(snap.Center)
		fmt.Fprintf(w, "%s,%.6f,%.6f,%.0f,%t,%t\n",
			snap.ID, fix.Point.Lat(), fix.Point.Lon(), snap.Duration.Seconds(), snap.IsNew, significant)
	}
	return nil
}
