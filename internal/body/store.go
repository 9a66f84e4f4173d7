package body

import (
	"fmt"
	"iter"
	"math/bits"
	"runtime"
	"sync"

	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/layers"
)

type slot struct {
	body *Body
	seq  uint8
}

// Store owns every body of a world. Slot writes hold the structural lock
// exclusively and the slot's shard lock, so a slot may be read under
// either of them.
type Store struct {
	mu    sync.RWMutex
	table *layers.Table
	bp    *broadphase.BroadPhase
	locks *LockManager

	slots []slot
	free  []uint32
	next  uint32
	count int

	activeMu sync.RWMutex
	active   []BodyID
}

// NewStore creates a store for up to maxBodies bodies guarded by
// numMutexes shard locks. A numMutexes of 0 picks a count from the CPU count.
func NewStore(maxBodies, numMutexes uint, table *layers.Table) (*Store, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil layer table", ErrInvalidSettings)
	}
	if maxBodies == 0 || maxBodies > MaxBodies {
		return nil, fmt.Errorf("%w: max bodies %d outside [1, %d]", ErrInvalidSettings, maxBodies, MaxBodies)
	}
	s := &Store{
		table: table,
		bp:    broadphase.New(table, maxBodies),
		slots: make([]slot, maxBodies),
	}
	s.locks = newLockManager(s, mutexCount(numMutexes))
	return s, nil
}

func mutexCount(n uint) uint {
	if n == 0 {
		n = uint(2 * runtime.NumCPU())
		n = min(max(n, 8), 64)
	}
	if n&(n-1) != 0 {
		n = 1 << bits.Len(n)
	}
	return n
}

func (s *Store) Table() *layers.Table               { return s.table }
func (s *Store) BroadPhase() *broadphase.BroadPhase { return s.bp }
func (s *Store) Locks() *LockManager                { return s.locks }
func (s *Store) MaxBodies() int                     { return len(s.slots) }

// Interface returns the locking gateway for body mutation.
func (s *Store) Interface() *Interface { return &Interface{store: s, lock: true} }

func (s *Store) NumBodies() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// BodyIDs returns the ids of every created body in slot order.
func (s *Store) BodyIDs() []BodyID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]BodyID, 0, s.count)
	for i := uint32(0); i < s.next; i++ {
		if b := s.slots[i].body; b != nil {
			ids = append(ids, b.id)
		}
	}
	return ids
}

// LockStructureShared blocks Create, Add and Remove until the matching
// UnlockStructureShared. The simulation step holds it for its duration.
func (s *Store) LockStructureShared()   { s.mu.RLock() }
func (s *Store) UnlockStructureShared() { s.mu.RUnlock() }

// lookup resolves id to its body. The caller holds the structural lock or
// the id's shard lock.
func (s *Store) lookup(id BodyID) *Body {
	if id.IsInvalid() {
		return nil
	}
	idx := id.Index()
	if idx >= uint32(len(s.slots)) {
		return nil
	}
	sl := s.slots[idx]
	if sl.body == nil || sl.seq != id.Sequence() {
		return nil
	}
	return sl.body
}

// TryGetBody resolves id without taking a shard lock. Immutable body
// fields may be read while the structural lock is held.
func (s *Store) TryGetBody(id BodyID) (*Body, error) {
	b := s.lookup(id)
	if b == nil {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, id)
	}
	return b, nil
}

// BodyAtIndex returns the body in slot index, or nil.
func (s *Store) BodyAtIndex(index uint32) *Body {
	if index >= uint32(len(s.slots)) {
		return nil
	}
	return s.slots[index].body
}

func (s *Store) create(cs *CreationSettings) (BodyID, error) {
	if err := cs.validate(s.table); err != nil {
		return InvalidBodyID, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var idx uint32
	switch {
	case len(s.free) > 0:
		idx = s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
	case s.next < uint32(len(s.slots)):
		idx = s.next
		s.next++
	default:
		return InvalidBodyID, fmt.Errorf("%w: %d", ErrTooManyBodies, len(s.slots))
	}

	id := NewBodyID(idx, s.slots[idx].seq)
	b := newBody(id, cs)

	shard := s.locks.shard(idx)
	shard.Lock()
	s.slots[idx].body = b
	shard.Unlock()
	s.count++
	return id, nil
}

func (s *Store) add(id BodyID, act Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.lookup(id)
	if b == nil {
		return fmt.Errorf("%w: %v", ErrStaleHandle, id)
	}
	if b.inBroadPhase {
		return fmt.Errorf("%w: %v", ErrAlreadyAdded, id)
	}

	shard := s.locks.shard(id.Index())
	shard.Lock()
	defer shard.Unlock()
	if err := s.bp.Insert(id.Index(), b.layer, b.Bounds()); err != nil {
		return err
	}
	b.inBroadPhase = true
	if act == Activate {
		s.activate(b)
	}
	return nil
}

func (s *Store) removeFromWorld(id BodyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detachLocked(id)
}

func (s *Store) detachLocked(id BodyID) error {
	b := s.lookup(id)
	if b == nil {
		return fmt.Errorf("%w: %v", ErrStaleHandle, id)
	}
	if !b.inBroadPhase {
		return fmt.Errorf("%w: %v", ErrNotAdded, id)
	}

	shard := s.locks.shard(id.Index())
	shard.Lock()
	defer shard.Unlock()
	if err := s.bp.Remove(id.Index()); err != nil {
		return err
	}
	b.inBroadPhase = false
	s.deactivate(b)
	return nil
}

func (s *Store) destroy(id BodyID, detach bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.lookup(id)
	if b == nil {
		return fmt.Errorf("%w: %v", ErrStaleHandle, id)
	}
	if b.inBroadPhase {
		if !detach {
			return fmt.Errorf("%w: %v", ErrAlreadyAdded, id)
		}
		if err := s.detachLocked(id); err != nil {
			return err
		}
	}

	idx := id.Index()
	shard := s.locks.shard(idx)
	shard.Lock()
	s.slots[idx].body = nil
	s.slots[idx].seq++
	shard.Unlock()
	s.free = append(s.free, idx)
	s.count--
	return nil
}

// activate adds b to the active set. No-op for static bodies and bodies
// already active.
func (s *Store) activate(b *Body) {
	if b.motion == Static {
		return
	}
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if b.activeIndex >= 0 {
		return
	}
	b.activeIndex = int32(len(s.active))
	s.active = append(s.active, b.id)
	b.state.SleepTimer = 0
}

func (s *Store) deactivate(b *Body) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	i := b.activeIndex
	if i < 0 {
		return
	}
	last := len(s.active) - 1
	if int(i) != last {
		moved := s.active[last]
		s.active[i] = moved
		s.slots[moved.Index()].body.activeIndex = i
	}
	s.active = s.active[:last]
	b.activeIndex = -1
}

// SetActive moves b in or out of the active set. The caller holds b's
// shard lock exclusively and the structural lock.
func (s *Store) SetActive(b *Body, active bool) {
	if active {
		s.activate(b)
	} else {
		s.deactivate(b)
	}
}

func (s *Store) isActive(b *Body) bool {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return b.activeIndex >= 0
}

// IsBodyActive reports whether b is in the active set.
func (s *Store) IsBodyActive(b *Body) bool { return s.isActive(b) }

func (s *Store) NumActiveBodies() int {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return len(s.active)
}

// CopyActive copies as many active ids as fit into dst.
func (s *Store) CopyActive(dst []BodyID) int {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return copy(dst, s.active)
}

// ActiveBodies yields the ids active at the moment ranging starts. Each
// range takes a fresh copy, so the sequence can be consumed repeatedly and
// the body lock may be taken inside the loop.
func (s *Store) ActiveBodies() iter.Seq[BodyID] {
	return func(yield func(BodyID) bool) {
		s.activeMu.RLock()
		ids := make([]BodyID, len(s.active))
		copy(ids, s.active)
		s.activeMu.RUnlock()
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}
