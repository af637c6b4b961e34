package fsgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateBoundsConcurrency(t *testing.T) {
	t.Parallel()

	g := New(2)
	var inFlight, peak atomic.Int32

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), func() error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestGateUnbounded(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	require.ErrorIs(t, New(0).Do(context.Background(), func() error { return want }), want)

	var nilGate *Gate
	require.NoError(t, nilGate.Do(context.Background(), func() error { return nil }))
}

func TestGateCanceledContext(t *testing.T) {
	t.Parallel()

	g := New(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := g.Do(ctx, func() error {
		ran = true
		return nil
	})
	close(release)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}
