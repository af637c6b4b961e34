// Package events carries fetch progress notifications from the fetch
// engine to interested listeners.
package events

import (
	"context"
	"log/slog"
	"sync"
)

// Event represents a progress update during a fetch.
type Event struct {
	// Kind identifies what happened.
	Kind Kind

	// URI is the key being fetched, if applicable.
	URI string

	// BytesDone is the number of bytes retrieved so far.
	BytesDone uint64

	// BytesTotal is the expected size of the content.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// BlocksDone is the number of splitfile blocks fetched.
	BlocksDone int

	// BlocksTotal is the number of blocks needed to decode.
	// Zero indicates the fetch is not a splitfile.
	BlocksTotal int

	// Err is set for KindFailed.
	Err error
}

// Kind identifies the type of a fetch event.
type Kind uint8

// Event kinds emitted during a fetch.
const (
	// KindStarted indicates a fetch has been scheduled.
	KindStarted Kind = iota

	// KindRedirect indicates metadata pointed at another key.
	KindRedirect

	// KindSplitfileProgress indicates splitfile blocks have completed.
	KindSplitfileProgress

	// KindArchiveRestart indicates an archive changed underneath the fetch
	// and the fetch was restarted.
	KindArchiveRestart

	// KindFinished indicates the fetch returned data.
	KindFinished

	// KindFailed indicates the fetch gave up.
	KindFailed
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindRedirect:
		return "redirect"
	case KindSplitfileProgress:
		return "splitfile progress"
	case KindArchiveRestart:
		return "archive restart"
	case KindFinished:
		return "finished"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Listener receives events. Implementations must be safe for
// concurrent calls.
type Listener func(Event)

// Producer delivers events to registered listeners.
type Producer interface {
	// Produce delivers e to every listener.
	Produce(e Event)

	// AddListener registers l for subsequent events.
	AddListener(l Listener)
}

// SimpleProducer fans events out to listeners synchronously, in
// registration order. It is safe for concurrent use.
type SimpleProducer struct {
	mu        sync.RWMutex
	listeners []Listener
}

var _ Producer = (*SimpleProducer)(nil)

// NewSimpleProducer returns a producer with the given listeners.
func NewSimpleProducer(listeners ...Listener) *SimpleProducer {
	p := &SimpleProducer{}
	for _, l := range listeners {
		p.AddListener(l)
	}
	return p
}

// AddListener registers l. Nil listeners are ignored.
func (p *SimpleProducer) AddListener(l Listener) {
	if l == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Produce delivers e to every registered listener.
func (p *SimpleProducer) Produce(e Event) {
	p.mu.RLock()
	listeners := p.listeners
	p.mu.RUnlock()
	for _, l := range listeners {
		l(e)
	}
}

// LogListener returns a listener that writes events to logger. Failures
// are logged at warn level, everything else at debug.
func LogListener(logger *slog.Logger) Listener {
	return func(e Event) {
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("kind", e.Kind.String()),
			slog.String("uri", e.URI),
		}
		if e.BytesTotal > 0 || e.BytesDone > 0 {
			attrs = append(attrs,
				slog.Uint64("bytes_done", e.BytesDone),
				slog.Uint64("bytes_total", e.BytesTotal))
		}
		if e.BlocksTotal > 0 {
			attrs = append(attrs,
				slog.Int("blocks_done", e.BlocksDone),
				slog.Int("blocks_total", e.BlocksTotal))
		}
		if e.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.Any("error", e.Err))
		}
		logger.LogAttrs(context.Background(), level, "fetch event", attrs...)
	}
}
