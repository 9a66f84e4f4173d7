package abi

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrStaleHandle        = errors.New("abi: stale handle")
	ErrNotInitialized     = errors.New("abi: physics system not initialized")
	ErrAlreadyInitialized = errors.New("abi: physics system already initialized")
	ErrShutdown           = errors.New("abi: runtime shut down")
)

// Handle is an opaque reference: generation in the high 32 bits, slot
// index plus one in the low 32. The zero Handle is never valid.
type Handle uint64

func makeHandle(index, gen uint32) Handle { return Handle(uint64(gen)<<32 | uint64(index+1)) }

func (h Handle) index() uint32 { return uint32(h) - 1 }
func (h Handle) gen() uint32   { return uint32(h >> 32) }

type handleSlot[T any] struct {
	val  T
	gen  uint32
	live bool
}

// Handles is a generation-checked table of T.
type Handles[T any] struct {
	mu    sync.RWMutex
	slots []handleSlot[T]
	free  []uint32
	live  int
}

func (t *Handles[T]) Insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, handleSlot[T]{gen: 1})
	}
	s := &t.slots[idx]
	s.val, s.live = v, true
	t.live++
	return makeHandle(idx, s.gen)
}

func (t *Handles[T]) slot(h Handle) (*handleSlot[T], error) {
	if h == 0 || int(h.index()) >= len(t.slots) {
		return nil, fmt.Errorf("%w: %#x", ErrStaleHandle, uint64(h))
	}
	s := &t.slots[h.index()]
	if !s.live || s.gen != h.gen() {
		return nil, fmt.Errorf("%w: %#x", ErrStaleHandle, uint64(h))
	}
	return s, nil
}

func (t *Handles[T]) Get(h Handle) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, err := t.slot(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.val, nil
}

// Remove deletes h and returns its value. Removing twice fails.
func (t *Handles[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	s, err := t.slot(h)
	if err != nil {
		return zero, err
	}
	v := s.val
	s.val, s.live = zero, false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	t.free = append(t.free, h.index())
	t.live--
	return v, nil
}

func (t *Handles[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Drain removes every live entry and returns the values.
func (t *Handles[T]) Drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []T
	var zero T
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		out = append(out, s.val)
		s.val, s.live = zero, false
		s.gen++
		if s.gen == 0 {
			s.gen = 1
		}
		t.free = append(t.free, uint32(i))
	}
	t.live = 0
	return out
}
