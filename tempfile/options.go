package tempfile

import (
	"fmt"
	"log/slog"
)

// Option configures a Generator.
type Option func(*Generator) error

// WithDir sets the directory names are generated in. An empty dir
// selects the platform temp directory.
func WithDir(dir string) Option {
	return func(g *Generator) error {
		g.dir = dir
		return nil
	}
}

// WithPrefix sets the filename prefix. Defaults to "fred-tmp-".
func WithPrefix(prefix string) Option {
	return func(g *Generator) error {
		g.prefix = prefix
		return nil
	}
}

// WithWipe removes stale files carrying the prefix during New.
func WithWipe(wipe bool) Option {
	return func(g *Generator) error {
		g.wipe = wipe
		return nil
	}
}

// WithLogger sets the logger for sweep and naming diagnostics.
// Defaults to a logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) error {
		if logger != nil {
			g.logger = logger
		}
		return nil
	}
}

// WithMaxConcurrentIO bounds how many filesystem calls the generator
// issues at once across all callers. Zero means unbounded.
func WithMaxConcurrentIO(n int) Option {
	return func(g *Generator) error {
		if n < 0 {
			return fmt.Errorf("%w: max concurrent IO must be >= 0", ErrConfiguration)
		}
		g.maxIO = n
		return nil
	}
}

// WithSweepWorkers sets how many deletions a sweep runs in parallel.
func WithSweepWorkers(n int) Option {
	return func(g *Generator) error {
		if n < 1 {
			return fmt.Errorf("%w: sweep workers must be >= 1", ErrConfiguration)
		}
		g.sweepWorkers = n
		return nil
	}
}
