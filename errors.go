package fred

import (
	"github.com/5nafu/fred/bucket"
	"github.com/5nafu/fred/fetch"
	"github.com/5nafu/fred/tempfile"
)

// Errors re-exported from fetch.
var (
	// ErrInvalidArgument is returned for an unknown mask or a negative limit.
	ErrInvalidArgument = fetch.ErrInvalidArgument

	// ErrCancelled is the context cause used when a fetch configuration is cancelled.
	ErrCancelled = fetch.ErrCancelled
)

// Errors re-exported from tempfile.
var (
	// ErrConfiguration is returned when the temp directory is unusable.
	ErrConfiguration = tempfile.ErrConfiguration
)

// Errors re-exported from bucket.
var (
	// ErrTooLarge is returned when a bucket would exceed its size limit.
	ErrTooLarge = bucket.ErrTooLarge

	// ErrFreed is returned when a freed bucket is used.
	ErrFreed = bucket.ErrFreed
)
