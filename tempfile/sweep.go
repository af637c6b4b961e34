package tempfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/5nafu/fred/internal/platform"
)

const (
	defaultSweepWorkers = 4
	progressInterval    = 1024
)

// WipeStats summarizes one sweep of the temp directory.
type WipeStats struct {
	// Examined is the number of directory entries looked at.
	Examined int

	// Matched is the number of entries whose name carries the prefix.
	Matched int

	// Live is the number of matched entries left alone because the
	// generator handed them out and they have not been released.
	Live int

	// Deleted is the number of matched entries that are gone afterwards.
	Deleted int

	// Failed is the number of stale matched entries that could not be
	// removed.
	Failed int

	// Elapsed is the wall time the sweep took.
	Elapsed time.Duration
}

// Sweep removes every entry in the directory whose name starts with
// the prefix, skipping live names this generator handed out. Name
// matching ignores case on platforms whose filesystems do.
//
// The sweep is best effort: a failed removal is logged and counted in
// the returned stats, and the sweep moves on. An error is returned if
// the prefix is empty, since every entry would match, or if the
// directory cannot be listed. Concurrent calls share a single pass.
func (g *Generator) Sweep(ctx context.Context) (WipeStats, error) {
	if g.prefix == "" {
		return WipeStats{}, fmt.Errorf("%w: refusing to sweep %s with an empty prefix", ErrConfiguration, g.dir)
	}
	v, err, _ := g.sweeps.Do(g.dir, func() (any, error) {
		return g.sweep(ctx)
	})
	stats, _ := v.(WipeStats)
	return stats, err
}

// LastSweep returns the stats of the most recent completed sweep.
func (g *Generator) LastSweep() WipeStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSweep
}

func (g *Generator) sweep(ctx context.Context) (WipeStats, error) {
	start := time.Now()

	var entries []os.DirEntry
	err := g.gate.Do(ctx, func() error {
		var readErr error
		entries, readErr = os.ReadDir(g.dir)
		return readErr
	})
	if err != nil {
		return WipeStats{}, fmt.Errorf("tempfile: list %s: %w", g.dir, err)
	}

	stats := WipeStats{Examined: len(entries)}
	var deleted atomic.Int64

	var eg errgroup.Group
	eg.SetLimit(g.sweepWorkers)
	for i, entry := range entries {
		if i > 0 && i%progressInterval == 0 {
			g.logger.Info("sweeping temp dir",
				slog.String("dir", g.dir),
				slog.Int("examined", i),
				slog.Int("matched", stats.Matched),
				slog.Int64("deleted", deleted.Load()))
		}
		name := entry.Name()
		if !platform.HasPrefix(name, g.prefix) {
			continue
		}
		stats.Matched++
		path := filepath.Join(g.dir, name)
		if g.isLive(path) {
			stats.Live++
			continue
		}
		eg.Go(func() error {
			if err := g.remove(ctx, path); err != nil {
				g.logger.Warn("unable to delete temp file",
					slog.String("path", path),
					slog.Any("error", err))
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	_ = eg.Wait() //nolint:errcheck // workers never return errors

	stats.Deleted = int(deleted.Load())
	stats.Failed = stats.Matched - stats.Live - stats.Deleted
	stats.Elapsed = time.Since(start)

	g.logger.Info("swept temp dir",
		slog.String("dir", g.dir),
		slog.Int("examined", stats.Examined),
		slog.Int("matched", stats.Matched),
		slog.Int("live", stats.Live),
		slog.Int("deleted", stats.Deleted),
		slog.Int("failed", stats.Failed),
		slog.Duration("elapsed", stats.Elapsed))

	g.mu.Lock()
	g.lastSweep = stats
	g.mu.Unlock()
	return stats, nil
}

// remove deletes path. An entry that is already gone counts as removed.
func (g *Generator) remove(ctx context.Context, path string) error {
	return g.gate.Do(ctx, func() error {
		err := os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	})
}
