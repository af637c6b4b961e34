// Package bucket provides the buffers fetched data is written into.
//
// A fetch asks a [Factory] for a bucket, writes the retrieved bytes
// through [Bucket.Writer] and hands the bucket to its caller, who reads
// it back and eventually frees it. Buckets record the digest of what
// was written so content-addressed callers can verify it.
package bucket

import (
	"errors"
	"io"

	"github.com/opencontainers/go-digest"
)

// Sentinel errors for bucket operations.
var (
	// ErrTooLarge is returned when a bucket would exceed its size limit.
	ErrTooLarge = errors.New("bucket: size limit exceeded")

	// ErrFreed is returned when a freed bucket is used.
	ErrFreed = errors.New("bucket: already freed")
)

// Bucket holds the bytes of one fetched item.
//
// Implementations must be safe for concurrent use, although only one
// writer may be open at a time.
type Bucket interface {
	// Writer returns a writer that replaces the bucket's contents.
	// The new contents become visible when the writer is closed.
	Writer() (io.WriteCloser, error)

	// Reader returns a reader over the committed contents.
	Reader() (io.ReadCloser, error)

	// Size returns the committed content length in bytes.
	Size() int64

	// Digest returns the sha256 digest of the committed contents, or
	// the empty digest if nothing has been written.
	Digest() digest.Digest

	// Free releases the storage behind the bucket. Further use fails
	// with ErrFreed. Freeing twice is a no-op.
	Free() error
}

// Factory creates buckets.
type Factory interface {
	// MakeBucket returns an empty bucket. sizeHint is the expected
	// content length, or -1 if unknown.
	MakeBucket(sizeHint int64) (Bucket, error)
}
