// Package dedupe coalesces recompute requests: at most one request per
// project is pending at any time.
package dedupe

import (
	"context"
	"errors"
	"sync"
)

// ErrFull is returned when the pending set is at capacity.
var ErrFull = errors.New("dedupe: pending set is full")

// Deduper tracks which projects already have a recompute queued.
type Deduper interface {
	// Mark records id as pending. It reports true when id was already
	// pending, in which case the caller's request is absorbed by that one.
	Mark(ctx context.Context, id string) (pending bool, err error)

	// Clear removes id so the next Mark queues a fresh request. Workers call
	// it right before recomputing, so submissions that land during the
	// recompute queue another pass.
	Clear(ctx context.Context, id string)

	Size() int64
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	pending map[string]struct{}
	maxSize int // <= 0 means unbounded
}

// NewInMemoryDeduper creates a map-backed Deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pending = make(map[string]struct{})
	return d
}

func (d *inMemoryDeduper) Mark(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[id]; ok {
		return true, nil
	}
	// never evict: a dropped mark would let two requests for one project queue
	if d.maxSize > 0 && len(d.pending) >= d.maxSize {
		return false, ErrFull
	}
	d.pending[id] = struct{}{}
	return false, nil
}

func (d *inMemoryDeduper) Clear(_ context.Context, id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.pending))
}
