package bucket

import (
	"fmt"
	"io"
)

// Limited wraps f so that no bucket it makes holds more than max bytes.
// Size hints above max fail immediately; writes that cross max fail
// with ErrTooLarge and the bucket keeps its previous contents.
// A max <= 0 returns f unchanged.
func Limited(f Factory, maxBytes int64) Factory {
	if maxBytes <= 0 {
		return f
	}
	return &limitedFactory{base: f, max: maxBytes}
}

type limitedFactory struct {
	base Factory
	max  int64
}

func (f *limitedFactory) MakeBucket(sizeHint int64) (Bucket, error) {
	if sizeHint > f.max {
		return nil, fmt.Errorf("%w: size hint %d > %d", ErrTooLarge, sizeHint, f.max)
	}
	b, err := f.base.MakeBucket(sizeHint)
	if err != nil {
		return nil, err
	}
	return &limitedBucket{Bucket: b, max: f.max}, nil
}

type limitedBucket struct {
	Bucket
	max int64
}

func (b *limitedBucket) Writer() (io.WriteCloser, error) {
	w, err := b.Bucket.Writer()
	if err != nil {
		return nil, err
	}
	return &limitedWriter{w: w, remaining: b.max, max: b.max}, nil
}

type limitedWriter struct {
	w         io.WriteCloser
	remaining int64
	max       int64
	exceeded  bool
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > w.remaining {
		w.exceeded = true
		return 0, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, w.max)
	}
	n, err := w.w.Write(p)
	w.remaining -= int64(n)
	return n, err
}

// Close commits unless the limit was crossed, in which case the
// underlying writer is abandoned.
func (w *limitedWriter) Close() error {
	if w.exceeded {
		if d, ok := w.w.(interface{ Discard() error }); ok {
			_ = d.Discard() //nolint:errcheck // already failing
		}
		return fmt.Errorf("%w: more than %d bytes", ErrTooLarge, w.max)
	}
	return w.w.Close()
}
