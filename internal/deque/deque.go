// Package deque implements a bounded, blocking-capable double-ended queue.
//
// The queue is safe for concurrent use by one producer and any number of
// consumers. Bounded queues never reject a push: at capacity, the element at
// the end opposite the insertion end is evicted first, so the queue always
// retains the most recent Cap() elements. Blocking pops wait on an internal
// wakeup channel that is replaced on every push; consumers re-check queue
// state under the lock after waking, which guarantees each element is handed
// to exactly one popper and no wakeup is lost.
package deque

import (
	"context"
	"errors"
	"sync"
)

// ErrEmpty is returned by a non-blocking pop on an empty queue and by a
// blocking pop whose context expires before an element arrives.
var ErrEmpty = errors.New("deque: empty")

// Deque is a double-ended queue of T. The zero value is not usable; use New
// or NewBounded.
type Deque[T comparable] struct {
	mu      sync.Mutex
	buf     []T
	head    int // index of the leftmost element
	size    int
	cap     int // 0 means unbounded
	arrival chan struct{}
}

// New returns an empty unbounded Deque.
func New[T comparable]() *Deque[T] {
	return NewBounded[T](0)
}

// NewBounded returns an empty Deque holding at most capacity elements.
// A capacity of 0 (or negative) means unbounded.
func NewBounded[T comparable](capacity int) *Deque[T] {
	if capacity < 0 {
		capacity = 0
	}
	n := capacity
	if n == 0 {
		n = 8
	}
	return &Deque[T]{
		buf:     make([]T, n),
		cap:     capacity,
		arrival: make(chan struct{}),
	}
}

// Len reports the number of elements currently in the queue.
func (d *Deque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Cap reports the maximum number of elements the queue retains, or 0 if
// unbounded.
func (d *Deque[T]) Cap() int {
	return d.cap
}

// PushRight appends v at the right end. If the queue is bounded and full, the
// leftmost element is evicted first. Never blocks.
func (d *Deque[T]) PushRight(v T) {
	d.mu.Lock()
	if d.cap > 0 && d.size == d.cap {
		d.dropLeft()
	}
	d.grow()
	d.buf[d.index(d.size)] = v
	d.size++
	d.wake()
	d.mu.Unlock()
}

// PushLeft prepends v at the left end. If the queue is bounded and full, the
// rightmost element is evicted first. Never blocks.
func (d *Deque[T]) PushLeft(v T) {
	d.mu.Lock()
	if d.cap > 0 && d.size == d.cap {
		d.dropRight()
	}
	d.grow()
	d.head = d.index(len(d.buf) - 1)
	d.buf[d.head] = v
	d.size++
	d.wake()
	d.mu.Unlock()
}

// Extend appends each element of vs at the right end, in order.
func (d *Deque[T]) Extend(vs []T) {
	for _, v := range vs {
		d.PushRight(v)
	}
}

// ExtendLeft prepends each element of vs at the left end. Successive elements
// are each pushed ahead of the previous one, so the relative order of vs is
// reversed in the queue.
func (d *Deque[T]) ExtendLeft(vs []T) {
	for _, v := range vs {
		d.PushLeft(v)
	}
}

// TryPopRight removes and returns the rightmost element without blocking.
// Returns ErrEmpty if the queue is empty.
func (d *Deque[T]) TryPopRight() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.takeRight()
}

// TryPopLeft removes and returns the leftmost element without blocking.
// Returns ErrEmpty if the queue is empty.
func (d *Deque[T]) TryPopLeft() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.takeLeft()
}

// PopRight removes and returns the rightmost element, waiting until one is
// available. If ctx is cancelled or its deadline passes first, ErrEmpty is
// returned. Use context.WithTimeout for a timed pop.
func (d *Deque[T]) PopRight(ctx context.Context) (T, error) {
	return d.pop(ctx, false)
}

// PopLeft removes and returns the leftmost element, waiting until one is
// available. If ctx is cancelled or its deadline passes first, ErrEmpty is
// returned.
func (d *Deque[T]) PopLeft(ctx context.Context) (T, error) {
	return d.pop(ctx, true)
}

func (d *Deque[T]) pop(ctx context.Context, left bool) (T, error) {
	var zero T
	for {
		d.mu.Lock()
		if d.size > 0 {
			var v T
			var err error
			if left {
				v, err = d.takeLeft()
			} else {
				v, err = d.takeRight()
			}
			d.mu.Unlock()
			return v, err
		}
		// Capture the current generation channel before unlocking; a push
		// after this point closes exactly this channel, so the wakeup
		// cannot be missed.
		arrival := d.arrival
		d.mu.Unlock()

		select {
		case <-arrival:
		case <-ctx.Done():
			return zero, ErrEmpty
		}
	}
}

// At returns the element at position i counted from the left end (0 is the
// leftmost element). Returns ErrEmpty when i is out of range.
func (d *Deque[T]) At(i int) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	if i < 0 || i >= d.size {
		return zero, ErrEmpty
	}
	return d.buf[d.index(i)], nil
}

// Count returns the number of elements equal to v.
func (d *Deque[T]) Count(v T) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for i := 0; i < d.size; i++ {
		if d.buf[d.index(i)] == v {
			n++
		}
	}
	return n
}

// Clear removes all elements.
func (d *Deque[T]) Clear() {
	d.mu.Lock()
	var zero T
	for i := 0; i < d.size; i++ {
		d.buf[d.index(i)] = zero
	}
	d.head = 0
	d.size = 0
	d.mu.Unlock()
}

// Reverse reverses the order of the elements in place.
func (d *Deque[T]) Reverse() {
	d.mu.Lock()
	for i, j := 0, d.size-1; i < j; i, j = i+1, j-1 {
		ii, jj := d.index(i), d.index(j)
		d.buf[ii], d.buf[jj] = d.buf[jj], d.buf[ii]
	}
	d.mu.Unlock()
}

// Rotate rotates the queue n steps to the right; negative n rotates left.
// Rotating one step right moves the rightmost element to the left end.
func (d *Deque[T]) Rotate(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.size == 0 || n == 0 {
		return
	}
	n %= d.size
	if n < 0 {
		n += d.size
	}
	// Move the trailing n elements to the front.
	snap := d.snapshotLocked()
	rotated := append(append(make([]T, 0, d.size), snap[d.size-n:]...), snap[:d.size-n]...)
	for i, v := range rotated {
		d.buf[d.index(i)] = v
	}
}

// Snapshot returns a copy of the elements from left to right.
func (d *Deque[T]) Snapshot() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Deque[T]) snapshotLocked() []T {
	out := make([]T, d.size)
	for i := 0; i < d.size; i++ {
		out[i] = d.buf[d.index(i)]
	}
	return out
}

func (d *Deque[T]) index(i int) int {
	return (d.head + i) % len(d.buf)
}

// grow doubles the backing slice when an unbounded queue runs out of room.
func (d *Deque[T]) grow() {
	if d.size < len(d.buf) {
		return
	}
	bigger := make([]T, 2*len(d.buf))
	for i := 0; i < d.size; i++ {
		bigger[i] = d.buf[d.index(i)]
	}
	d.buf = bigger
	d.head = 0
}

func (d *Deque[T]) takeLeft() (T, error) {
	var zero T
	if d.size == 0 {
		return zero, ErrEmpty
	}
	v := d.buf[d.head]
	d.buf[d.head] = zero
	d.head = d.index(1)
	d.size--
	return v, nil
}

func (d *Deque[T]) takeRight() (T, error) {
	var zero T
	if d.size == 0 {
		return zero, ErrEmpty
	}
	i := d.index(d.size - 1)
	v := d.buf[i]
	d.buf[i] = zero
	d.size--
	return v, nil
}

func (d *Deque[T]) dropLeft() {
	_, _ = d.takeLeft()
}

func (d *Deque[T]) dropRight() {
	_, _ = d.takeRight()
}

// wake signals waiting poppers that an element arrived. Called with the lock
// held on every push.
func (d *Deque[T]) wake() {
	close(d.arrival)
	d.arrival = make(chan struct{})
}
