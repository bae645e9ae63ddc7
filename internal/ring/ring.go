// Package ring implements a bounded single-producer/single-consumer hand-off
// queue. It is the only hand-off mechanism between pipeline stages: no
// mutexes, no condition variables, no buffered channels, no allocation on
// the hot path. Grounded on the cache-line-padded, cached-opposite-index
// design used by lock-free SPSC ring buffers in the broader Go ecosystem
// (Lamport's ring buffer, producer/consumer each caching the other's index
// to reduce cross-core cache-line traffic).
package ring

import "sync/atomic"

// cacheLinePad separates fields that belong to different cores onto
// different cache lines, preventing false sharing.
type cacheLinePad [64]byte

// Ring is a bounded SPSC queue. Usable capacity is N-1 slots, where N is the
// next power of two >= the capacity requested at construction. The zero
// value is not usable; construct with New.
//
// Exactly one goroutine may call TryPush (the producer) and exactly one
// goroutine may call TryPop (the consumer); they may be different
// goroutines running concurrently. Len, IsEmpty, and IsFull are advisory
// observers safe to call from either side.
type Ring[T any] struct {
	_ cacheLinePad
	// tail is the producer's monotonically increasing write cursor.
	tail uint64
	// cachedHead is the producer's private cached view of head, avoiding a
	// cross-core load on every push when there is slack in the ring.
	cachedHead uint64
	_          cacheLinePad

	// head is the consumer's monotonically increasing read cursor.
	head uint64
	// cachedTail is the consumer's private cached view of tail.
	cachedTail uint64
	_          cacheLinePad

	mask uint64
	buf  []T
}

// New creates a Ring whose usable capacity is (next power of two >= n) - 1.
// n must be >= 2.
func New[T any](n int) *Ring[T] {
	if n < 2 {
		panic("ring: capacity must be >= 2")
	}
	size := nextPow2(uint64(n))
	return &Ring[T]{
		mask: size - 1,
		buf:  make([]T, size),
	}
}

func nextPow2(n uint64) uint64 {
	if n&(n-1) == 0 {
		return n
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the usable capacity (N-1 slots).
func (r *Ring[T]) Cap() int {
	return int(r.mask)
}

// TryPush attempts to enqueue item. Producer-only. Returns false, leaving
// item untouched by the ring, if the ring is full. Never blocks, never
// allocates.
func (r *Ring[T]) TryPush(item T) bool {
	tail := r.tail // owned by the producer; no atomic load needed

	if tail-r.cachedHead >= r.mask {
		// Slack exhausted by our own cached view; refresh from the
		// consumer's published index before concluding we're full.
		r.cachedHead = atomic.LoadUint64(&r.head)
		if tail-r.cachedHead >= r.mask {
			return false
		}
	}

	r.buf[tail&r.mask] = item
	atomic.StoreUint64(&r.tail, tail+1) // release: publishes buf[tail] to the consumer
	return true
}

// TryPop attempts to dequeue the oldest item. Consumer-only. Returns the
// zero value and false if the ring is empty. Never blocks.
func (r *Ring[T]) TryPop() (T, bool) {
	var zero T
	head := r.head // owned by the consumer; no atomic load needed

	if head == r.cachedTail {
		r.cachedTail = atomic.LoadUint64(&r.tail) // acquire: synchronizes with TryPush's release
		if head == r.cachedTail {
			return zero, false
		}
	}

	item := r.buf[head&r.mask]
	r.buf[head&r.mask] = zero           // allow GC of the slot's referents
	atomic.StoreUint64(&r.head, head+1) // release: publishes the freed slot to the producer
	return item, true
}

// Len returns an advisory occupancy count. Under concurrent push/pop it may
// be stale by the time it's read, but never exceeds Cap() nor goes negative.
func (r *Ring[T]) Len() int {
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)
	n := tail - head
	if n > r.mask {
		n = r.mask
	}
	return int(n)
}

// IsEmpty reports whether the ring currently holds no items.
func (r *Ring[T]) IsEmpty() bool {
	return atomic.LoadUint64(&r.head) == atomic.LoadUint64(&r.tail)
}

// IsFull reports whether the ring is at its usable capacity.
func (r *Ring[T]) IsFull() bool {
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)
	return tail-head >= r.mask
}
