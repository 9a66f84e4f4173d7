package body

import (
	"slices"
	"sync"
)

// LockManager hands out shared and exclusive access to bodies through a
// fixed array of shard mutexes. There is no upgrade from read to write.
type LockManager struct {
	store  *Store
	shards []sync.RWMutex
	mask   uint32
}

func newLockManager(s *Store, n uint) *LockManager {
	return &LockManager{store: s, shards: make([]sync.RWMutex, n), mask: uint32(n - 1)}
}

func (m *LockManager) shard(index uint32) *sync.RWMutex { return &m.shards[index&m.mask] }

func (m *LockManager) MutexCount() int { return len(m.shards) }

// MutexIndex returns the shard guarding id.
func (m *LockManager) MutexIndex(id BodyID) int { return int(id.Index() & m.mask) }

// ReadLock is a shared guard on one body. The zero value is a failed lock.
type ReadLock struct {
	mu   *sync.RWMutex
	body *Body
}

func (l *ReadLock) Succeeded() bool { return l.body != nil }

// SucceededAndIsInBroadPhase also requires the body to have been added.
func (l *ReadLock) SucceededAndIsInBroadPhase() bool {
	return l.body != nil && l.body.inBroadPhase
}

func (l *ReadLock) Body() *Body { return l.body }

// Release drops the lock. Calling it again is a no-op.
func (l *ReadLock) Release() {
	if l.mu != nil {
		l.mu.RUnlock()
		l.mu, l.body = nil, nil
	}
}

// WriteLock is an exclusive guard on one body.
type WriteLock struct {
	mu   *sync.RWMutex
	body *Body
}

func (l *WriteLock) Succeeded() bool { return l.body != nil }

func (l *WriteLock) SucceededAndIsInBroadPhase() bool {
	return l.body != nil && l.body.inBroadPhase
}

func (l *WriteLock) Body() *Body { return l.body }

func (l *WriteLock) Release() {
	if l.mu != nil {
		l.mu.Unlock()
		l.mu, l.body = nil, nil
	}
}

func (m *LockManager) inRange(id BodyID) bool {
	return !id.IsInvalid() && id.Index() < uint32(len(m.store.slots))
}

// LockRead takes id's shard shared. A stale id yields a failed guard
// without holding anything.
func (m *LockManager) LockRead(id BodyID) ReadLock {
	if !m.inRange(id) {
		return ReadLock{}
	}
	mu := m.shard(id.Index())
	mu.RLock()
	b := m.store.lookup(id)
	if b == nil {
		mu.RUnlock()
		return ReadLock{}
	}
	return ReadLock{mu: mu, body: b}
}

func (m *LockManager) LockWrite(id BodyID) WriteLock {
	if !m.inRange(id) {
		return WriteLock{}
	}
	mu := m.shard(id.Index())
	mu.Lock()
	b := m.store.lookup(id)
	if b == nil {
		mu.Unlock()
		return WriteLock{}
	}
	return WriteLock{mu: mu, body: b}
}

// Read runs fn with id locked shared and reports whether the lock succeeded.
func (m *LockManager) Read(id BodyID, fn func(*Body)) bool {
	l := m.LockRead(id)
	defer l.Release()
	if !l.Succeeded() {
		return false
	}
	fn(l.body)
	return true
}

func (m *LockManager) Write(id BodyID, fn func(*Body)) bool {
	l := m.LockWrite(id)
	defer l.Release()
	if !l.Succeeded() {
		return false
	}
	fn(l.body)
	return true
}

// MultiLock guards a set of bodies. Bodies holds nil for ids that failed
// to resolve, in the order the ids were given.
type MultiLock struct {
	m      *LockManager
	shards []int
	write  bool
	Bodies []*Body
}

func (m *LockManager) lockMulti(ids []BodyID, write bool) MultiLock {
	shards := make([]int, 0, len(ids))
	for _, id := range ids {
		if m.inRange(id) {
			shards = append(shards, m.MutexIndex(id))
		}
	}
	slices.Sort(shards)
	shards = slices.Compact(shards)

	for _, i := range shards {
		if write {
			m.shards[i].Lock()
		} else {
			m.shards[i].RLock()
		}
	}

	bodies := make([]*Body, len(ids))
	for i, id := range ids {
		bodies[i] = m.store.lookup(id)
	}
	return MultiLock{m: m, shards: shards, write: write, Bodies: bodies}
}

// LockMultiRead takes the distinct shards of ids in ascending order.
func (m *LockManager) LockMultiRead(ids ...BodyID) MultiLock  { return m.lockMulti(ids, false) }
func (m *LockManager) LockMultiWrite(ids ...BodyID) MultiLock { return m.lockMulti(ids, true) }

func (l *MultiLock) Release() {
	if l.m == nil {
		return
	}
	for i := len(l.shards) - 1; i >= 0; i-- {
		if l.write {
			l.m.shards[l.shards[i]].Unlock()
		} else {
			l.m.shards[l.shards[i]].RUnlock()
		}
	}
	l.m, l.shards, l.Bodies = nil, nil, nil
}

// LockAll takes every shard exclusively in ascending order.
func (m *LockManager) LockAll() {
	for i := range m.shards {
		m.shards[i].Lock()
	}
}

func (m *LockManager) UnlockAll() {
	for i := len(m.shards) - 1; i >= 0; i-- {
		m.shards[i].Unlock()
	}
}
