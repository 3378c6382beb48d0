package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"horizonmask/pkg/db"
	"horizonmask/pkg/store"
)

const lastRunStateKey = "maintenance_last_run"

// DownloadCacheTTL is how long downloaded index files stay in the cache table.
const DownloadCacheTTL = 30 * 24 * time.Hour

// Run executes all maintenance tasks: dropping index rows whose artifacts are
// gone and pruning old downloads. It blocks until completion.
func Run(ctx context.Context, s store.Store, d *db.DB) error {
	slog.Info("Starting database maintenance...")

	removed, err := dropDangling(ctx, s)
	if err != nil {
		slog.Error("Mask index check failed", "error", err)
	} else {
		slog.Info("Mask index check completed", "removed", removed)
	}

	if err := d.PruneCache(DownloadCacheTTL); err != nil {
		slog.Error("Cache pruning failed", "error", err)
	} else {
		slog.Info("Cache pruning completed")
	}

	if err := s.SetState(ctx, lastRunStateKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}
	return nil
}

// dropDangling removes index rows whose OBJ or horizon file no longer exists.
// A row without its artifacts would turn every lookup into a partial hit.
func dropDangling(ctx context.Context, s store.MaskStore) (int, error) {
	rows, err := s.ListMasks(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if exists(r.OBJPath) && exists(r.HorizonPath) {
			continue
		}
		slog.Warn("Dropping cache row with missing artifacts", "stem", r.Stem, "obj", r.OBJPath, "horizon", r.HorizonPath)
		if err := s.DeleteMask(ctx, r.Hash); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", r.Stem, err)
		}
		removed++
	}
	return removed, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
