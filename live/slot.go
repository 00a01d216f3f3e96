package live

import (
	"sync"
	"sync/atomic"
)

// Slot is a single-slot, latest-wins queue. Offer replaces any value not
// yet polled; the replaced value is dropped and counted.
type Slot[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool
	ready   chan struct{}
	dropped atomic.Uint64
}

// NewSlot returns an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ready: make(chan struct{}, 1)}
}

// Offer stores v, superseding a pending value.
func (s *Slot[T]) Offer(v T) {
	s.mu.Lock()
	if s.pending {
		s.dropped.Add(1)
	}
	s.value = v
	s.pending = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Poll takes the pending value, if any.
func (s *Slot[T]) Poll() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if !s.pending {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.pending = false
	return v, true
}

// C is signaled after Offer. A signal may be stale; Poll decides.
func (s *Slot[T]) C() <-chan struct{} { return s.ready }

// Dropped returns how many offered values were superseded before being
// polled.
func (s *Slot[T]) Dropped() uint64 { return s.dropped.Load() }

// Cell holds a value shared between one writer and many readers. Readers
// never observe a partially written value.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
}

// Store replaces the value.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	c.value = v
	c.set = true
	c.mu.Unlock()
}

// Load returns the value and whether one was ever stored.
func (c *Cell[T]) Load() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}
