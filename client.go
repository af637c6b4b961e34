package fred

import (
	"fmt"
	"log/slog"

	"github.com/5nafu/fred/bucket"
	"github.com/5nafu/fred/bucket/disk"
	"github.com/5nafu/fred/events"
	"github.com/5nafu/fred/fetch"
	"github.com/5nafu/fred/random"
	"github.com/5nafu/fred/tempfile"
)

// Client owns the state shared by every fetch a process runs: the
// randomness source, the temp-file namespace, the bucket factory, the
// event sink and the default fetch settings.
//
// Each top-level request gets its own root configuration from
// [Client.NewFetchConfig]. Client is safe for concurrent use.
type Client struct {
	random   random.Source
	settings fetch.Settings
	logger   *slog.Logger
	events   *events.SimpleProducer

	// Temp files
	tempDir     string
	tempPrefix  string
	wipeTemp    bool
	maxTempIO   int
	compressTmp bool
	memoryOnly  bool

	// Collaborators passed through to fetch configurations
	client   fetch.LowLevelClient
	archives fetch.ArchiveManager
	starter  fetch.RequestStarter

	names   *tempfile.Generator
	buckets bucket.Factory
}

// NewClient creates a client with the given options.
//
// Unless [WithMemoryBuckets] is set, NewClient prepares the temp
// directory and, with [WithWipeTemp], reclaims files left there by a
// previous run before returning.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		random:     random.Crypto(),
		settings:   fetch.DefaultSettings(),
		logger:     slog.New(slog.DiscardHandler),
		events:     events.NewSimpleProducer(),
		tempPrefix: DefaultTempPrefix,
		maxTempIO:  DefaultMaxTempIO,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.settings.Limits().Validate(); err != nil {
		return nil, err
	}

	if c.memoryOnly {
		c.buckets = bucket.MemoryFactory{}
		return c, nil
	}

	names, err := tempfile.New(c.random,
		tempfile.WithDir(c.tempDir),
		tempfile.WithPrefix(c.tempPrefix),
		tempfile.WithWipe(c.wipeTemp),
		tempfile.WithMaxConcurrentIO(c.maxTempIO),
		tempfile.WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}
	buckets, err := disk.New(names,
		disk.WithCompression(c.compressTmp),
		disk.WithLogger(c.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("fred: bucket factory: %w", err)
	}
	c.names = names
	c.buckets = buckets
	return c, nil
}

// NewFetchConfig returns a root configuration for one top-level
// request, built from the client's settings and collaborators. opts
// are applied last and may replace any collaborator.
func (c *Client) NewFetchConfig(opts ...fetch.Option) (*fetch.Config, error) {
	base := []fetch.Option{
		fetch.WithRandom(c.random),
		fetch.WithBucketFactory(c.buckets),
		fetch.WithEventProducer(c.events),
		fetch.WithClient(c.client),
		fetch.WithArchiveManager(c.archives),
		fetch.WithRequestStarter(c.starter),
		fetch.WithLogger(c.logger),
	}
	return fetch.New(c.settings.Limits(), append(base, opts...)...)
}

// TempFiles returns the temp-file namespace, or nil for a client
// using memory buckets.
func (c *Client) TempFiles() *tempfile.Generator {
	return c.names
}

// Buckets returns the bucket factory fetches buffer data in.
func (c *Client) Buckets() bucket.Factory {
	return c.buckets
}

// Events returns the event producer shared by all fetch configurations.
func (c *Client) Events() events.Producer {
	return c.events
}

// Settings returns the default fetch settings.
func (c *Client) Settings() fetch.Settings {
	return c.settings
}
