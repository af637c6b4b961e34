// Package random provides the randomness sources shared by fetch
// operations and the temp-file namespace.
//
// A Source fills byte slices with random data. Sources handed to
// long-lived components may be used by many goroutines at once, so
// components wrap them with [Locked] unless the source reports that it
// is already safe for concurrent use.
package random

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"
)

// ErrNilSource is returned when a nil source is supplied.
var ErrNilSource = errors.New("random: nil source")

// Source produces random bytes.
type Source interface {
	// NextBytes fills p entirely with random bytes.
	NextBytes(p []byte) error
}

// ConcurrentSafe is implemented by sources that may be shared between
// goroutines without external locking.
type ConcurrentSafe interface {
	Source
	ConcurrentSafe()
}

// Crypto returns a source backed by crypto/rand.
func Crypto() Source {
	return cryptoSource{}
}

type cryptoSource struct{}

func (cryptoSource) NextBytes(p []byte) error {
	_, err := rand.Read(p)
	return err
}

func (cryptoSource) ConcurrentSafe() {}

// FromReader adapts an io.Reader into a Source. The reader is not
// locked; wrap the result with [Locked] before sharing it.
func FromReader(r io.Reader) Source {
	return readerSource{r: r}
}

type readerSource struct {
	r io.Reader
}

func (s readerSource) NextBytes(p []byte) error {
	_, err := io.ReadFull(s.r, p)
	return err
}

// Locked serializes calls to src. Sources that already implement
// [ConcurrentSafe] are returned unchanged.
func Locked(src Source) Source {
	if src == nil {
		return nil
	}
	if _, ok := src.(ConcurrentSafe); ok {
		return src
	}
	return &lockedSource{src: src}
}

type lockedSource struct {
	mu  sync.Mutex
	src Source
}

func (s *lockedSource) NextBytes(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.NextBytes(p)
}

func (s *lockedSource) ConcurrentSafe() {}
