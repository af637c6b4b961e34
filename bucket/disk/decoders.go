package disk

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// decoderPool recycles zstd decoders across bucket readers. Bucket
// reads are sequential, so decoders run synchronously on the caller's
// goroutine instead of starting their own.
type decoderPool struct {
	pool sync.Pool
}

// get returns a decoder reading from r and a release function that
// hands it back to the pool.
func (p *decoderPool) get(r io.Reader) (*zstd.Decoder, func(), error) {
	if dec, ok := p.pool.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err == nil {
			return dec, func() { p.put(dec) }, nil
		}
		dec.Close()
	}
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, nil, err
	}
	return dec, func() { p.put(dec) }, nil
}

func (p *decoderPool) put(dec *zstd.Decoder) {
	_ = dec.Reset(nil) //nolint:errcheck // drops the file reference before pooling
	p.pool.Put(dec)
}
