package server

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
)

// SweepConfig holds configuration for the orphan-blob sweep.
//
// The submit flow writes blobs first and the metadata record last, so
// a crash mid-request can leave objects in the bucket that no
// submission references. The sweep reconciles that: any object under
// the uploads/ prefix older than MinAge with no submission_files row
// pointing at it gets removed.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
	MinAge   time.Duration
	DB       *sql.DB
	Minio    *minio.Client
	Bucket   string
}

// StartSweep runs the orphan sweep on a background goroutine until ctx
// is cancelled.
func StartSweep(ctx context.Context, cfg SweepConfig) {
	if !cfg.Enabled {
		log.Printf("service=sweep msg=%q", "disabled")
		return
	}

	log.Printf("service=sweep msg=%q interval=%s min_age=%s",
		"starting", cfg.Interval, cfg.MinAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	runSweep(ctx, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Printf("service=sweep msg=%q", "shutting_down")
			return
		case <-ticker.C:
			runSweep(ctx, cfg)
		}
	}
}

func runSweep(ctx context.Context, cfg SweepConfig) {
	start := time.Now()
	cutoff := time.Now().Add(-cfg.MinAge)

	objects := cfg.Minio.ListObjects(ctx, cfg.Bucket, minio.ListObjectsOptions{
		Prefix: "uploads/",
	})

	removed := 0
	for obj := range objects {
		if obj.Err != nil {
			log.Printf("service=sweep msg=%q err=%v", "list_failed", obj.Err)
			return
		}
		// MinAge keeps the sweep from racing an in-flight submission
		// whose metadata insert has not happened yet.
		if obj.LastModified.After(cutoff) {
			continue
		}

		var referenced bool
		err := cfg.DB.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM submission_files WHERE object_key = $1)`,
			obj.Key,
		).Scan(&referenced)
		if err != nil {
			log.Printf("service=sweep msg=%q key=%s err=%v", "lookup_failed", obj.Key, err)
			continue
		}
		if referenced {
			continue
		}

		if err := cfg.Minio.RemoveObject(ctx, cfg.Bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			log.Printf("service=sweep msg=%q key=%s err=%v", "remove_failed", obj.Key, err)
			continue
		}
		log.Printf("service=sweep msg=%q key=%s age=%s", "removed_orphan", obj.Key, time.Since(obj.LastModified))
		removed++
	}

	log.Printf("service=sweep msg=%q removed=%d ms=%d",
		"sweep_complete", removed, time.Since(start).Milliseconds())
}
