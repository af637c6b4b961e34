package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/5nafu/fred/bucket"
	"github.com/5nafu/fred/events"
	"github.com/5nafu/fred/random"
)

// LowLevelClient sends single-key requests to the network. It is
// implemented by the node, not by this package.
type LowLevelClient interface {
	// Fetch retrieves the raw data stored under key.
	Fetch(ctx context.Context, key string, localOnly, ignoreStore bool) ([]byte, error)
}

// ArchiveManager caches the contents of container archives that
// fetches have already expanded.
type ArchiveManager interface {
	// Lookup returns the cached entry name of the archive at key.
	Lookup(key, name string) (bucket.Bucket, bool)
}

// RequestStarter schedules requests issued on behalf of a fetch.
type RequestStarter interface {
	// Start queues run and returns once it has been accepted.
	Start(ctx context.Context, run func(context.Context) error) error
}

// Option configures a root Config.
type Option func(*Config) error

// WithClient sets the low-level request client.
func WithClient(client LowLevelClient) Option {
	return func(c *Config) error {
		c.client = client
		return nil
	}
}

// WithArchiveManager sets the archive handling policy.
func WithArchiveManager(m ArchiveManager) Option {
	return func(c *Config) error {
		c.archives = m
		return nil
	}
}

// WithBucketFactory sets where fetched data is buffered.
func WithBucketFactory(f bucket.Factory) Option {
	return func(c *Config) error {
		if f == nil {
			return fmt.Errorf("%w: nil bucket factory", ErrInvalidArgument)
		}
		c.buckets = f
		return nil
	}
}

// WithEventProducer sets the event sink.
func WithEventProducer(p events.Producer) Option {
	return func(c *Config) error {
		c.events = p
		return nil
	}
}

// WithRequestStarter sets the request scheduler.
func WithRequestStarter(s RequestStarter) Option {
	return func(c *Config) error {
		c.starter = s
		return nil
	}
}

// WithRandom sets the randomness source. Sources that are not safe for
// concurrent use are serialized.
func WithRandom(src random.Source) Option {
	return func(c *Config) error {
		if src == nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, random.ErrNilSource)
		}
		c.random = random.Locked(src)
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}
