// Package dedupe detects catalogue candidates that resolve to the same rate
// equation, so each distinct model is fitted once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen equation keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it under
	// name if not. When key was seen it returns the name it was first
	// recorded under and true.
	SeenAndRecord(ctx context.Context, key, name string) (string, bool)

	Size() int64
}

type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]string // key -> first name
	hint int
	size atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]string, d.hint)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if first, ok := d.seen[key]; ok {
		return first, true
	}
	d.seen[key] = name
	d.size.Add(1)
	return name, false
}

// Size returns the number of distinct keys recorded.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
