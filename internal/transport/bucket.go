package transport

import "context"

// Bucket accumulates unique ids and flushes them in fixed-size batches.
// Call Flush at end of stream for the remainder.
type Bucket[T comparable] struct {
	capacity int
	items    []T
	seen     map[T]struct{}
	flush    func(ctx context.Context, items []T) error
}

func NewBucket[T comparable](capacity int, flush func(ctx context.Context, items []T) error) *Bucket[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bucket[T]{
		capacity: capacity,
		seen:     map[T]struct{}{},
		flush:    flush,
	}
}

func (b *Bucket[T]) Add(ctx context.Context, item T) error {
	if _, ok := b.seen[item]; ok {
		return nil
	}
	b.seen[item] = struct{}{}
	b.items = append(b.items, item)
	if len(b.items) >= b.capacity {
		return b.Flush(ctx)
	}
	return nil
}

func (b *Bucket[T]) Flush(ctx context.Context) error {
	if len(b.items) == 0 {
		return nil
	}
	batch := b.items
	b.items = make([]T, 0, b.capacity)
	return b.flush(ctx, batch)
}

// Chunk splits items into consecutive batches of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
