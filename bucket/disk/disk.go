// Package disk provides buckets backed by files in the temp-file
// namespace.
//
// Every file a Factory touches is named by a [tempfile.Generator], so a
// sweep of that generator's directory reclaims buckets leaked by a
// crashed process.
package disk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"

	"github.com/5nafu/fred/bucket"
	"github.com/5nafu/fred/internal/platform"
	"github.com/5nafu/fred/tempfile"
)

// Factory creates file-backed buckets.
type Factory struct {
	names    *tempfile.Generator
	compress bool
	level    zstd.EncoderLevel
	decoders *decoderPool
	logger   *slog.Logger
}

var _ bucket.Factory = (*Factory)(nil)

// Option configures a disk Factory.
type Option func(*Factory)

// WithCompression stores bucket contents zstd-compressed on disk.
func WithCompression(enabled bool) Option {
	return func(f *Factory) {
		f.compress = enabled
	}
}

// WithEncoderLevel sets the zstd level used when compression is on.
// Defaults to zstd.SpeedFastest.
func WithEncoderLevel(level zstd.EncoderLevel) Option {
	return func(f *Factory) {
		f.level = level
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a factory that names its files with names.
func New(names *tempfile.Generator, opts ...Option) (*Factory, error) {
	if names == nil {
		return nil, errors.New("disk: nil filename generator")
	}
	f := &Factory{
		names:  names,
		level:  zstd.SpeedFastest,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.compress {
		f.decoders = &decoderPool{}
	}
	return f, nil
}

// MakeBucket reserves a file for a new, empty bucket.
func (f *Factory) MakeBucket(sizeHint int64) (bucket.Bucket, error) {
	file, err := f.names.Create()
	if err != nil {
		return nil, err
	}
	path := file.Name()
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		f.names.Release(path)
		return nil, err
	}
	return &Bucket{factory: f, path: path}, nil
}

// SizeBytes returns the bytes on disk held by files carrying the
// generator's prefix.
func (f *Factory) SizeBytes() (int64, error) {
	entries, err := os.ReadDir(f.names.Dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !platform.HasPrefix(entry.Name(), f.names.Prefix()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Bucket is a file-backed bucket.
type Bucket struct {
	factory *Factory
	path    string

	mu     sync.RWMutex
	size   int64
	digest digest.Digest
	freed  bool
}

var _ bucket.Bucket = (*Bucket)(nil)

// Path returns the file holding the bucket's contents.
func (b *Bucket) Path() string {
	return b.path
}

// Writer streams new contents into a fresh temp file that replaces the
// bucket file on Close.
func (b *Bucket) Writer() (io.WriteCloser, error) {
	b.mu.RLock()
	freed := b.freed
	b.mu.RUnlock()
	if freed {
		return nil, bucket.ErrFreed
	}

	tmp, err := b.factory.names.Create()
	if err != nil {
		return nil, err
	}
	w := &diskWriter{
		bucket:   b,
		file:     tmp,
		tmpPath:  tmp.Name(),
		digester: digest.Canonical.Digester(),
		out:      tmp,
	}
	if b.factory.compress {
		enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(b.factory.level))
		if err != nil {
			_ = w.Discard()
			return nil, fmt.Errorf("disk: create encoder: %w", err)
		}
		w.enc = enc
		w.out = enc
	}
	return w, nil
}

// Reader opens the committed contents.
func (b *Bucket) Reader() (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.freed {
		return nil, bucket.ErrFreed
	}
	file, err := os.Open(b.path)
	if err != nil {
		return nil, err
	}
	if !b.factory.compress {
		return file, nil
	}
	if b.size == 0 {
		file.Close()
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	dec, release, err := b.factory.decoders.get(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("disk: open decoder: %w", err)
	}
	return &decodingReader{dec: dec, release: release, file: file}, nil
}

// Size returns the uncompressed committed length.
func (b *Bucket) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Digest returns the digest of the uncompressed committed contents.
func (b *Bucket) Digest() digest.Digest {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.digest
}

// Free deletes the bucket file.
func (b *Bucket) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return nil
	}
	b.freed = true
	defer b.factory.names.Release(b.path)
	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		b.factory.logger.Warn("unable to free bucket",
			slog.String("path", b.path),
			slog.Any("error", err))
		return err
	}
	return nil
}

type diskWriter struct {
	bucket   *Bucket
	file     *os.File
	tmpPath  string
	enc      *zstd.Encoder
	out      io.Writer
	digester digest.Digester
	written  int64
	done     bool
}

func (w *diskWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	n, err := w.out.Write(p)
	_, _ = w.digester.Hash().Write(p[:n]) //nolint:errcheck // hash writes never fail
	w.written += int64(n)
	return n, err
}

// Close flushes the encoder and moves the temp file over the bucket file.
func (w *diskWriter) Close() error {
	if w.done {
		return nil
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			_ = w.Discard()
			return err
		}
	}
	w.done = true
	names := w.bucket.factory.names
	defer names.Release(w.tmpPath)
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return err
	}

	b := w.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		_ = os.Remove(w.tmpPath)
		return bucket.ErrFreed
	}
	if err := os.Rename(w.tmpPath, b.path); err != nil {
		_ = os.Remove(w.tmpPath)
		return err
	}
	b.size = w.written
	b.digest = w.digester.Digest()
	return nil
}

// Discard drops the temp file without touching the bucket.
func (w *diskWriter) Discard() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.bucket.factory.names.Release(w.tmpPath)
	if w.enc != nil {
		_ = w.enc.Close()
	}
	_ = w.file.Close()
	return os.Remove(w.tmpPath)
}

type decodingReader struct {
	dec     *zstd.Decoder
	release func()
	file    *os.File
	once    sync.Once
}

func (r *decodingReader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *decodingReader) Close() error {
	var err error
	r.once.Do(func() {
		r.release()
		err = r.file.Close()
	})
	return err
}
