package fred

import (
	"fmt"
	"log/slog"

	"github.com/5nafu/fred/events"
	"github.com/5nafu/fred/fetch"
	"github.com/5nafu/fred/random"
)

// Option configures a Client.
type Option func(*Client) error

// Defaults for the temp-file namespace.
const (
	DefaultTempPrefix = "fred-tmp-"
	DefaultMaxTempIO  = 8
)

// --- Settings Options ---

// WithSettings replaces the default fetch settings.
func WithSettings(s fetch.Settings) Option {
	return func(c *Client) error {
		c.settings = s
		return nil
	}
}

// WithSettingsFile loads fetch settings from a YAML file.
func WithSettingsFile(path string) Option {
	return func(c *Client) error {
		s, err := fetch.LoadSettings(path)
		if err != nil {
			return err
		}
		c.settings = s
		return nil
	}
}

// --- Temp File Options ---

// WithTempDir sets the directory temp files are created in. Defaults to
// the platform temp directory.
func WithTempDir(dir string) Option {
	return func(c *Client) error {
		c.tempDir = dir
		return nil
	}
}

// WithTempPrefix sets the temp filename prefix ([DefaultTempPrefix]).
// Every file the client creates carries it, and [WithWipeTemp] deletes
// every file that does.
func WithTempPrefix(prefix string) Option {
	return func(c *Client) error {
		c.tempPrefix = prefix
		return nil
	}
}

// WithWipeTemp deletes stale temp files during NewClient.
func WithWipeTemp(wipe bool) Option {
	return func(c *Client) error {
		c.wipeTemp = wipe
		return nil
	}
}

// WithMaxTempIO bounds concurrent filesystem calls made for temp files.
// Zero removes the bound.
func WithMaxTempIO(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("%w: max temp IO must be >= 0, got %d", ErrInvalidArgument, n)
		}
		c.maxTempIO = n
		return nil
	}
}

// WithTempCompression stores temp buckets zstd-compressed.
func WithTempCompression(enabled bool) Option {
	return func(c *Client) error {
		c.compressTmp = enabled
		return nil
	}
}

// WithMemoryBuckets buffers fetched data in memory and never touches
// the temp directory.
func WithMemoryBuckets() Option {
	return func(c *Client) error {
		c.memoryOnly = true
		return nil
	}
}

// --- Collaborator Options ---

// WithRandom sets the randomness source shared by the temp-file
// namespace and every fetch configuration.
func WithRandom(src random.Source) Option {
	return func(c *Client) error {
		if src == nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, random.ErrNilSource)
		}
		c.random = random.Locked(src)
		return nil
	}
}

// WithLowLevelClient sets the network client handed to fetches.
func WithLowLevelClient(client fetch.LowLevelClient) Option {
	return func(c *Client) error {
		c.client = client
		return nil
	}
}

// WithArchiveManager sets the archive policy handed to fetches.
func WithArchiveManager(m fetch.ArchiveManager) Option {
	return func(c *Client) error {
		c.archives = m
		return nil
	}
}

// WithRequestStarter sets the request scheduler handed to fetches.
func WithRequestStarter(s fetch.RequestStarter) Option {
	return func(c *Client) error {
		c.starter = s
		return nil
	}
}

// WithEventListener registers a listener for fetch events.
func WithEventListener(l events.Listener) Option {
	return func(c *Client) error {
		c.events.AddListener(l)
		return nil
	}
}

// --- Logging Options ---

// WithLogger sets the logger used by the client and everything it
// creates. Defaults to discarding all output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}
