// Package tempfile hands out collision-free filenames for buffering
// fetched data on disk.
//
// A Generator owns a directory and a filename prefix. Names are the
// prefix followed by 16 lower-case hex characters drawn from a random
// source. A name is only guaranteed not to exist at the moment it is
// returned; use [Generator.Create] to pair name selection with an
// exclusive create.
//
// Files left behind by a previous process can be reclaimed with
// [WithWipe] or [Generator.Sweep], which removes every entry in the
// directory whose name starts with the prefix, except names the
// generator itself has handed out and not yet released.
package tempfile

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/5nafu/fred/internal/fsgate"
	"github.com/5nafu/fred/internal/platform"
	"github.com/5nafu/fred/random"
)

// randomBytes is the number of random bytes behind each name.
const randomBytes = 8

const (
	defaultPrefix = "fred-tmp-"
	dirPerm       = 0o700
	filePerm      = 0o600
)

// ErrConfiguration is returned when the generator cannot use its
// directory or options.
var ErrConfiguration = errors.New("tempfile: invalid configuration")

// Generator produces random, currently unused filenames in a directory.
// It is safe for concurrent use.
type Generator struct {
	dir    string
	prefix string
	random random.Source
	logger *slog.Logger
	gate   *fsgate.Gate

	wipe         bool
	maxIO        int
	sweepWorkers int
	sweeps       singleflight.Group

	mu        sync.Mutex
	lastSweep WipeStats
	live      map[string]struct{}
}

// New creates a generator drawing names from src.
//
// The directory defaults to the platform temp directory and is created
// if missing. New fails with [ErrConfiguration] if the directory is not
// a readable and writable directory. If [WithWipe] is set, stale files
// matching the prefix are removed before New returns; removal failures
// are logged and counted but never fail construction.
func New(src random.Source, opts ...Option) (*Generator, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, random.ErrNilSource)
	}
	g := &Generator{
		prefix:       defaultPrefix,
		random:       random.Locked(src),
		logger:       slog.New(slog.DiscardHandler),
		sweepWorkers: defaultSweepWorkers,
		live:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if strings.ContainsAny(g.prefix, `/\`) {
		return nil, fmt.Errorf("%w: prefix %q contains a path separator", ErrConfiguration, g.prefix)
	}
	if g.wipe && g.prefix == "" {
		return nil, fmt.Errorf("%w: refusing to wipe with an empty prefix", ErrConfiguration)
	}

	dir, err := prepareDir(g.dir)
	if err != nil {
		return nil, err
	}
	g.dir = dir
	g.gate = fsgate.New(g.maxIO)

	if g.wipe {
		if _, err := g.Sweep(context.Background()); err != nil {
			g.logger.Warn("temp dir sweep failed",
				slog.String("dir", g.dir),
				slog.Any("error", err))
		}
	}
	return g, nil
}

func prepareDir(dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrConfiguration, abs, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrConfiguration, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrConfiguration, abs)
	}
	if err := platform.CheckReadWrite(abs); err != nil {
		return "", fmt.Errorf("%w: cannot read/write %s: %w", ErrConfiguration, abs, err)
	}
	return abs, nil
}

// Dir returns the absolute directory names are generated in.
func (g *Generator) Dir() string {
	return g.dir
}

// Prefix returns the filename prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}

// MakeRandomFilename returns the full path of a file that does not
// exist at the time of the check.
//
// Collisions are retried with a fresh draw and never surfaced. The
// returned name counts as live, and sweeps skip it, until it is passed
// to [Generator.Release].
func (g *Generator) MakeRandomFilename() (string, error) {
	buf := make([]byte, randomBytes)
	for {
		if err := g.random.NextBytes(buf); err != nil {
			return "", fmt.Errorf("tempfile: draw random name: %w", err)
		}
		path := filepath.Join(g.dir, g.prefix+hex.EncodeToString(buf))

		var statErr error
		_ = g.gate.Do(context.Background(), func() error { //nolint:errcheck // background context never cancels
			_, statErr = os.Lstat(path)
			return nil
		})
		if errors.Is(statErr, fs.ErrNotExist) {
			g.mu.Lock()
			g.live[path] = struct{}{}
			g.mu.Unlock()
			g.logger.Debug("made random filename", slog.String("path", path))
			return path, nil
		}
		if statErr != nil {
			return "", fmt.Errorf("tempfile: check %s: %w", path, statErr)
		}
		g.logger.Debug("random filename collision", slog.String("path", path))
	}
}

// Create opens a new file under a random name with exclusive-create
// semantics, picking another name if one appears between the check and
// the create. The caller owns the returned file.
func (g *Generator) Create() (*os.File, error) {
	for {
		path, err := g.MakeRandomFilename()
		if err != nil {
			return nil, err
		}
		var f *os.File
		err = g.gate.Do(context.Background(), func() error {
			var openErr error
			f, openErr = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, filePerm) //nolint:gosec // path is generated, not user input
			return openErr
		})
		if errors.Is(err, fs.ErrExist) {
			g.Release(path)
			g.logger.Debug("lost create race", slog.String("path", path))
			continue
		}
		if err != nil {
			g.Release(path)
			return nil, err
		}
		return f, nil
	}
}

// Release marks a name from [Generator.MakeRandomFilename] or
// [Generator.Create] as no longer in use, making it eligible for the
// next sweep. Call it once the file has been removed or handed off.
func (g *Generator) Release(path string) {
	g.mu.Lock()
	delete(g.live, path)
	g.mu.Unlock()
}

func (g *Generator) isLive(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.live[path]
	return ok
}
