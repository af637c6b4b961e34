package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the on-disk form of a root configuration's limits.
type Settings struct {
	MaxOutputLength           int64 `yaml:"max-output-length"`
	MaxTempLength             int64 `yaml:"max-temp-length"`
	MaxMetadataSize           int   `yaml:"max-metadata-size"`
	MaxRecursionLevel         int   `yaml:"max-recursion-level"`
	MaxArchiveRestarts        int   `yaml:"max-archive-restarts"`
	DontEnterImplicitArchives bool  `yaml:"dont-enter-implicit-archives"`
	MaxSplitfileThreads       int   `yaml:"max-splitfile-threads"`
	MaxSplitfileBlockRetries  int   `yaml:"max-splitfile-block-retries"`
	MaxNonSplitfileRetries    int   `yaml:"max-non-splitfile-retries"`
	AllowSplitfiles           bool  `yaml:"allow-splitfiles"`
	FollowRedirects           bool  `yaml:"follow-redirects"`
	LocalRequestOnly          bool  `yaml:"local-request-only"`
	IgnoreStore               bool  `yaml:"ignore-store"`
	CacheLocalRequests        bool  `yaml:"cache-local-requests"`
	MaxDataBlocksPerSegment   int   `yaml:"max-data-blocks-per-segment"`
	MaxCheckBlocksPerSegment  int   `yaml:"max-check-blocks-per-segment"`
}

// DefaultSettings returns the limits a client uses when no settings
// file overrides them.
func DefaultSettings() Settings {
	return Settings{
		MaxOutputLength:          2 << 30,
		MaxTempLength:            2 << 30,
		MaxMetadataSize:          1 << 20,
		MaxRecursionLevel:        10,
		MaxArchiveRestarts:       4,
		MaxSplitfileThreads:      20,
		MaxSplitfileBlockRetries: 5,
		MaxNonSplitfileRetries:   2,
		AllowSplitfiles:          true,
		FollowRedirects:          true,
		CacheLocalRequests:       true,
		MaxDataBlocksPerSegment:  256,
		MaxCheckBlocksPerSegment: 256,
	}
}

// LoadSettings reads a YAML settings file. Keys missing from the file
// keep their defaults; unknown keys are an error.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file '%s': %w", path, err)
	}
	s, err := ParseSettings(data)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to process settings file '%s': %w", path, err)
	}
	return s, nil
}

// ParseSettings decodes YAML settings on top of the defaults.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, err
	}
	if err := s.Limits().Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Limits converts the settings into configuration limits.
func (s Settings) Limits() Limits {
	return Limits(s)
}

// SettingsFromLimits is the inverse of Settings.Limits.
func SettingsFromLimits(l Limits) Settings {
	return Settings(l)
}
