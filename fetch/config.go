// Package fetch holds the retrieval configuration a fetch engine runs
// with.
//
// A top-level request builds one root [Config] with [New]. When the
// engine recurses, for example into a single splitfile block or into a
// container manifest, it derives a child with [Config.Derive] and a
// [Mask] naming the rule to apply. Derivation never mutates the
// parent: every field of the child is the parent's value or the value
// the mask fixes.
//
// A Config is read-only after construction apart from its
// cancellation flag, so it can be shared freely between goroutines.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/5nafu/fred/bucket"
	"github.com/5nafu/fred/events"
	"github.com/5nafu/fred/random"
)

// Sentinel errors for configuration operations.
var (
	// ErrInvalidArgument is returned for an unknown mask or an
	// out-of-range limit.
	ErrInvalidArgument = errors.New("fetch: invalid argument")

	// ErrCancelled is the cause attached to contexts from
	// [Config.Context] when the configuration is cancelled.
	ErrCancelled = errors.New("fetch: cancelled")
)

// Limits are the resource limits and policy flags of a fetch.
type Limits struct {
	// MaxOutputLength caps the size of the returned data in bytes.
	MaxOutputLength int64
	// MaxTempLength caps any intermediate buffer in bytes.
	MaxTempLength int64
	// MaxMetadataSize caps a metadata document in bytes.
	MaxMetadataSize int

	// MaxRecursionLevel bounds how many metadata redirects are followed.
	MaxRecursionLevel int
	// MaxArchiveRestarts bounds restarts caused by archives changing
	// underneath the fetch.
	MaxArchiveRestarts int
	// DontEnterImplicitArchives stops the engine from looking inside
	// archives that metadata did not explicitly point into.
	DontEnterImplicitArchives bool

	// MaxSplitfileThreads bounds concurrent block fetches for one splitfile.
	MaxSplitfileThreads int
	// MaxSplitfileBlockRetries bounds retries of a single splitfile block.
	MaxSplitfileBlockRetries int
	// MaxNonSplitfileRetries bounds retries of a plain key.
	MaxNonSplitfileRetries int
	// AllowSplitfiles permits fetching multi-block content.
	AllowSplitfiles bool
	// FollowRedirects permits following metadata redirects.
	FollowRedirects bool

	// LocalRequestOnly restricts the fetch to the local store.
	LocalRequestOnly bool
	// IgnoreStore skips the local store when reading.
	IgnoreStore bool
	// CacheLocalRequests caches data fetched by local requests.
	CacheLocalRequests bool

	// MaxDataBlocksPerSegment caps data blocks in one splitfile segment.
	MaxDataBlocksPerSegment int
	// MaxCheckBlocksPerSegment caps check blocks in one splitfile segment.
	MaxCheckBlocksPerSegment int
}

// Validate reports the first negative limit.
func (l Limits) Validate() error {
	checks := []struct {
		name  string
		value int64
	}{
		{"max output length", l.MaxOutputLength},
		{"max temp length", l.MaxTempLength},
		{"max metadata size", int64(l.MaxMetadataSize)},
		{"max recursion level", int64(l.MaxRecursionLevel)},
		{"max archive restarts", int64(l.MaxArchiveRestarts)},
		{"max splitfile threads", int64(l.MaxSplitfileThreads)},
		{"max splitfile block retries", int64(l.MaxSplitfileBlockRetries)},
		{"max non-splitfile retries", int64(l.MaxNonSplitfileRetries)},
		{"max data blocks per segment", int64(l.MaxDataBlocksPerSegment)},
		{"max check blocks per segment", int64(l.MaxCheckBlocksPerSegment)},
	}
	for _, c := range checks {
		if c.value < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", ErrInvalidArgument, c.name, c.value)
		}
	}
	return nil
}

// state is everything a derived Config inherits. Mask rules operate on
// a copy of it.
type state struct {
	limits Limits

	// splitfileUseLengths sizes segments from the lengths declared in
	// splitfile metadata. Only masks set it.
	splitfileUseLengths bool
	// returnManifestAsData returns a container manifest as the fetch
	// result when no path components remain. Only masks set it.
	returnManifestAsData bool

	client   LowLevelClient
	archives ArchiveManager
	buckets  bucket.Factory
	events   events.Producer
	starter  RequestStarter
	random   random.Source
	logger   *slog.Logger
}

// Config is a retrieval configuration.
type Config struct {
	state

	cancelled atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a root configuration. Collaborators not supplied through
// options default to a crypto random source, in-memory buckets, a
// fresh event producer and a discarding logger.
func New(limits Limits, opts ...Option) (*Config, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	c := newConfig(state{
		limits:  limits,
		buckets: bucket.MemoryFactory{},
		random:  random.Crypto(),
		logger:  slog.New(slog.DiscardHandler),
	})
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.events == nil {
		c.events = events.NewSimpleProducer()
	}
	return c, nil
}

func newConfig(s state) *Config {
	return &Config{state: s, done: make(chan struct{})}
}

// Clone returns a copy of c with its own, uncancelled flag.
func (c *Config) Clone() *Config {
	return newConfig(c.state)
}

// Cancel marks the configuration cancelled. Fetches holding it stop at
// their next checkpoint. Calling Cancel again has no effect.
func (c *Config) Cancel() {
	c.cancelled.Store(true)
	c.closeOnce.Do(func() { close(c.done) })
}

// IsCancelled reports whether Cancel has been called.
func (c *Config) IsCancelled() bool {
	return c.cancelled.Load()
}

// Done returns a channel closed by Cancel.
func (c *Config) Done() <-chan struct{} {
	return c.done
}

// Context returns a context that is cancelled with cause [ErrCancelled]
// when c is cancelled, or when parent is done. Call the returned cancel
// function to release resources once the fetch ends.
func (c *Config) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case <-c.done:
			cancel(ErrCancelled)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// Limits returns the resource limits and policy flags.
func (c *Config) Limits() Limits { return c.limits }

// SplitfileUseLengths reports whether splitfile segments are sized from
// their declared lengths rather than the defaults.
func (c *Config) SplitfileUseLengths() bool { return c.splitfileUseLengths }

// ReturnManifestAsData reports whether a container manifest is returned
// as data when no path remains to resolve.
func (c *Config) ReturnManifestAsData() bool { return c.returnManifestAsData }

// Client returns the low-level request client.
func (c *Config) Client() LowLevelClient { return c.client }

// ArchiveManager returns the archive handling policy.
func (c *Config) ArchiveManager() ArchiveManager { return c.archives }

// BucketFactory returns the factory fetched data is buffered in.
func (c *Config) BucketFactory() bucket.Factory { return c.buckets }

// TempBuckets returns the bucket factory capped at MaxTempLength.
func (c *Config) TempBuckets() bucket.Factory {
	return bucket.Limited(c.buckets, c.limits.MaxTempLength)
}

// Events returns the event sink.
func (c *Config) Events() events.Producer { return c.events }

// RequestStarter returns the request scheduler handle.
func (c *Config) RequestStarter() RequestStarter { return c.starter }

// Random returns the shared randomness source.
func (c *Config) Random() random.Source { return c.random }

// Logger returns the logger.
func (c *Config) Logger() *slog.Logger { return c.logger }

// LogValue implements slog.LogValuer.
func (c *Config) LogValue() slog.Value {
	l := c.limits
	return slog.GroupValue(
		slog.Int64("max_output_length", l.MaxOutputLength),
		slog.Int64("max_temp_length", l.MaxTempLength),
		slog.Int("max_metadata_size", l.MaxMetadataSize),
		slog.Int("max_recursion_level", l.MaxRecursionLevel),
		slog.Int("max_archive_restarts", l.MaxArchiveRestarts),
		slog.Bool("dont_enter_implicit_archives", l.DontEnterImplicitArchives),
		slog.Int("max_splitfile_threads", l.MaxSplitfileThreads),
		slog.Int("max_splitfile_block_retries", l.MaxSplitfileBlockRetries),
		slog.Int("max_non_splitfile_retries", l.MaxNonSplitfileRetries),
		slog.Bool("allow_splitfiles", l.AllowSplitfiles),
		slog.Bool("follow_redirects", l.FollowRedirects),
		slog.Bool("local_request_only", l.LocalRequestOnly),
		slog.Bool("ignore_store", l.IgnoreStore),
		slog.Bool("cache_local_requests", l.CacheLocalRequests),
		slog.Int("max_data_blocks_per_segment", l.MaxDataBlocksPerSegment),
		slog.Int("max_check_blocks_per_segment", l.MaxCheckBlocksPerSegment),
		slog.Bool("splitfile_use_lengths", c.splitfileUseLengths),
		slog.Bool("return_manifest_as_data", c.returnManifestAsData),
		slog.Bool("cancelled", c.IsCancelled()),
	)
}
