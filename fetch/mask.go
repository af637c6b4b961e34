package fetch

import (
	"fmt"
	"log/slog"
)

// Mask selects the rule used to derive a child configuration.
type Mask uint8

// Masks understood by Derive.
const (
	// MaskIdentical copies every field.
	MaskIdentical Mask = iota

	// MaskSplitfileDefaultBlock is used to fetch one block of a
	// splitfile. It forbids further splitfiles, redirects and archive
	// descent, and limits recursion to the block itself.
	MaskSplitfileDefaultBlock

	// MaskSplitfileDefault sizes segments with the defaults.
	MaskSplitfileDefault

	// MaskSplitfileUseLengths sizes segments from declared lengths.
	MaskSplitfileUseLengths

	// MaskSetReturnArchives returns container manifests as data.
	MaskSetReturnArchives
)

// maskRules maps each mask to the overrides it applies to a copy of the
// parent's state. Fields a rule does not touch keep the parent's value.
var maskRules = [...]func(*state){
	MaskIdentical: func(*state) {},
	MaskSplitfileDefaultBlock: func(s *state) {
		s.limits.MaxRecursionLevel = 1
		s.limits.MaxArchiveRestarts = 0
		s.limits.DontEnterImplicitArchives = true
		s.limits.MaxSplitfileThreads = 0
		s.limits.MaxSplitfileBlockRetries = 0
		s.limits.AllowSplitfiles = false
		s.limits.FollowRedirects = false
		s.limits.MaxDataBlocksPerSegment = 0
		s.limits.MaxCheckBlocksPerSegment = 0
		s.splitfileUseLengths = false
		s.returnManifestAsData = false
	},
	MaskSplitfileDefault: func(s *state) {
		s.splitfileUseLengths = false
	},
	MaskSplitfileUseLengths: func(s *state) {
		s.splitfileUseLengths = true
	},
	MaskSetReturnArchives: func(s *state) {
		s.returnManifestAsData = true
	},
}

var maskNames = [...]string{
	MaskIdentical:             "identical",
	MaskSplitfileDefaultBlock: "splitfile-default-block",
	MaskSplitfileDefault:      "splitfile-default",
	MaskSplitfileUseLengths:   "splitfile-use-lengths",
	MaskSetReturnArchives:     "set-return-archives",
}

// Masks returns every known mask in order.
func Masks() []Mask {
	out := make([]Mask, len(maskRules))
	for i := range maskRules {
		out[i] = Mask(i)
	}
	return out
}

// Valid reports whether m is a known mask.
func (m Mask) Valid() bool {
	return int(m) < len(maskRules)
}

// String returns the mask name.
func (m Mask) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mask(%d)", uint8(m))
	}
	return maskNames[m]
}

// ParseMask returns the mask with the given name.
func ParseMask(name string) (Mask, error) {
	for i, n := range maskNames {
		if n == name {
			return Mask(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mask %q", ErrInvalidArgument, name)
}

// Derive returns a new configuration built from c by the rule for mask.
// The child starts uncancelled; cancelling either configuration does not
// affect the other. An unknown mask returns [ErrInvalidArgument].
func (c *Config) Derive(mask Mask) (*Config, error) {
	if !mask.Valid() {
		return nil, fmt.Errorf("%w: unknown mask %d", ErrInvalidArgument, uint8(mask))
	}
	s := c.state
	maskRules[mask](&s)
	c.logger.Debug("derived fetch config", slog.String("mask", mask.String()))
	return newConfig(s), nil
}

// MustDerive is like Derive but panics on an unknown mask.
func (c *Config) MustDerive(mask Mask) *Config {
	child, err := c.Derive(mask)
	if err != nil {
		panic(err)
	}
	return child
}
