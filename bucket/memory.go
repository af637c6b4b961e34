package bucket

import (
	"bytes"
	"io"
	"sync"

	"github.com/opencontainers/go-digest"
)

// MemoryFactory creates buckets held entirely in memory.
type MemoryFactory struct{}

var _ Factory = MemoryFactory{}

// MakeBucket returns an empty in-memory bucket.
func (MemoryFactory) MakeBucket(sizeHint int64) (Bucket, error) {
	return NewMemory(sizeHint), nil
}

// Memory is an in-memory Bucket.
type Memory struct {
	mu     sync.RWMutex
	data   []byte
	digest digest.Digest
	hint   int
	freed  bool
}

var _ Bucket = (*Memory)(nil)

// NewMemory returns an empty bucket. A positive sizeHint preallocates
// the write buffer.
func NewMemory(sizeHint int64) *Memory {
	m := &Memory{}
	if sizeHint > 0 && sizeHint <= 1<<30 {
		m.hint = int(sizeHint)
	}
	return m
}

// Writer returns a writer that buffers in memory and commits on Close.
func (m *Memory) Writer() (io.WriteCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.freed {
		return nil, ErrFreed
	}
	w := &memoryWriter{bucket: m, digester: digest.Canonical.Digester()}
	if m.hint > 0 {
		w.buf.Grow(m.hint)
	}
	return w, nil
}

// Reader returns a reader over the committed bytes.
func (m *Memory) Reader() (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.freed {
		return nil, ErrFreed
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// Size returns the committed length.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// Digest returns the digest of the committed bytes.
func (m *Memory) Digest() digest.Digest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.digest
}

// Free drops the buffer.
func (m *Memory) Free() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.digest = ""
	m.freed = true
	return nil
}

type memoryWriter struct {
	bucket   *Memory
	buf      bytes.Buffer
	digester digest.Digester
	closed   bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	_, _ = w.digester.Hash().Write(p) //nolint:errcheck // hash writes never fail
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.bucket.mu.Lock()
	defer w.bucket.mu.Unlock()
	if w.bucket.freed {
		return ErrFreed
	}
	w.bucket.data = w.buf.Bytes()
	w.bucket.digest = w.digester.Digest()
	return nil
}
