// Package dedupe tracks personal identifiers so a register never holds the same person twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen PNRs together with where they were first seen.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it at
	// pos if not. When id was already seen it returns the original position
	// and true.
	SeenAndRecord(ctx context.Context, id string, pos int) (first int, seen bool)

	// Unrecord forgets id so it can be recorded again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map guarded by a mutex.
type inMemoryDeduper struct {
	mu       sync.Mutex
	seen     map[string]int
	expected int
	size     atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int, d.expected)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string, pos int) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if first, ok := d.seen[id]; ok {
		return first, true
	}
	d.seen[id] = pos
	d.size.Add(1)
	return pos, false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// Size returns the number of distinct identifiers recorded.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
