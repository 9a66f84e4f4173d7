package body

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Interface is the gateway for creating and mutating bodies. Every field
// access takes the body's shard lock unless the interface came from NoLock.
type Interface struct {
	store *Store
	lock  bool
}

// NoLock returns a variant that skips shard locks, for callers that
// already hold them.
func (i *Interface) NoLock() *Interface { return &Interface{store: i.store} }

func (i *Interface) read(id BodyID, fn func(*Body)) error {
	if !i.lock {
		b := i.store.lookup(id)
		if b == nil {
			return fmt.Errorf("%w: %v", ErrStaleHandle, id)
		}
		fn(b)
		return nil
	}
	if !i.store.locks.Read(id, fn) {
		return fmt.Errorf("%w: %v", ErrStaleHandle, id)
	}
	return nil
}

func (i *Interface) write(id BodyID, fn func(*Body)) error {
	if !i.lock {
		return i.read(id, fn)
	}
	if !i.store.locks.Write(id, fn) {
		return fmt.Errorf("%w: %v", ErrStaleHandle, id)
	}
	return nil
}

// Create allocates a body from settings. The body is not in the world
// until Add.
func (i *Interface) Create(settings CreationSettings) (BodyID, error) {
	return i.store.create(&settings)
}

// Add inserts the body into the broad phase. With Activate a non-static
// body also joins the active set; with DontActivate it starts asleep.
func (i *Interface) Add(id BodyID, act Activation) error {
	return i.store.add(id, act)
}

func (i *Interface) CreateAndAdd(settings CreationSettings, act Activation) (BodyID, error) {
	id, err := i.Create(settings)
	if err != nil {
		return InvalidBodyID, err
	}
	if err := i.Add(id, act); err != nil {
		_ = i.store.destroy(id, false)
		return InvalidBodyID, err
	}
	return id, nil
}

// RemoveFromWorld takes the body out of the broad phase and active set
// but keeps it allocated.
func (i *Interface) RemoveFromWorld(id BodyID) error {
	return i.store.removeFromWorld(id)
}

// Destroy frees a body that is not in the world. Its id goes stale.
func (i *Interface) Destroy(id BodyID) error {
	return i.store.destroy(id, false)
}

// Remove detaches the body if needed and frees it.
func (i *Interface) Remove(id BodyID) error {
	return i.store.destroy(id, true)
}

func (i *Interface) IsAdded(id BodyID) bool {
	var added bool
	_ = i.read(id, func(b *Body) { added = b.inBroadPhase })
	return added
}

// SetLinearVelocity sets the velocity of a movable body. A non-zero
// velocity wakes a sleeping body that is in the world.
func (i *Interface) SetLinearVelocity(id BodyID, v mgl64.Vec3) error {
	if !finite(v) {
		return fmt.Errorf("%w: non-finite velocity", ErrInvalidSettings)
	}
	return i.write(id, func(b *Body) {
		if b.motion == Static {
			return
		}
		b.state.LinearVelocity = clampLen(v, b.maxLinearVel)
		b.writes++
		if b.inBroadPhase && v.Len() > 0 {
			i.store.activate(b)
		}
	})
}

func (i *Interface) GetLinearVelocity(id BodyID) (mgl64.Vec3, error) {
	var v mgl64.Vec3
	err := i.read(id, func(b *Body) { v = b.state.LinearVelocity })
	return v, err
}

func (i *Interface) SetAngularVelocity(id BodyID, w mgl64.Vec3) error {
	if !finite(w) {
		return fmt.Errorf("%w: non-finite velocity", ErrInvalidSettings)
	}
	return i.write(id, func(b *Body) {
		if b.motion == Static {
			return
		}
		b.state.AngularVelocity = clampLen(w, b.maxAngularVel)
		b.writes++
		if b.inBroadPhase && w.Len() > 0 {
			i.store.activate(b)
		}
	})
}

func (i *Interface) GetAngularVelocity(id BodyID) (mgl64.Vec3, error) {
	var w mgl64.Vec3
	err := i.read(id, func(b *Body) { w = b.state.AngularVelocity })
	return w, err
}

// SetPosition teleports a body and refreshes its broad-phase proxy. It
// takes the structural lock, so it waits for a running step.
func (i *Interface) SetPosition(id BodyID, p mgl64.Vec3, act Activation) error {
	if !finite(p) {
		return fmt.Errorf("%w: non-finite position", ErrInvalidSettings)
	}
	s := i.store
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.lookup(id)
	if b == nil {
		return fmt.Errorf("%w: %v", ErrStaleHandle, id)
	}

	mu := s.locks.shard(id.Index())
	mu.Lock()
	defer mu.Unlock()
	b.state.Position = p
	if !b.inBroadPhase {
		return nil
	}
	if err := s.bp.Update(id.Index(), b.Bounds()); err != nil {
		return err
	}
	s.bp.MarkMoved()
	if act == Activate {
		s.activate(b)
	}
	return nil
}

func (i *Interface) GetPosition(id BodyID) (mgl64.Vec3, error) {
	var p mgl64.Vec3
	err := i.read(id, func(b *Body) { p = b.state.Position })
	return p, err
}

func (i *Interface) GetRotation(id BodyID) (mgl64.Quat, error) {
	var q mgl64.Quat
	err := i.read(id, func(b *Body) { q = b.state.Rotation })
	return q, err
}

func (i *Interface) SetUserData(id BodyID, tag uint64) error {
	return i.write(id, func(b *Body) { b.userData = tag })
}

func (i *Interface) GetUserData(id BodyID) (uint64, error) {
	var tag uint64
	err := i.read(id, func(b *Body) { tag = b.userData })
	return tag, err
}

// IsActive reports false for sleeping, detached and stale bodies.
func (i *Interface) IsActive(id BodyID) bool {
	var active bool
	_ = i.read(id, func(b *Body) { active = i.store.isActive(b) })
	return active
}

// ActivateBody wakes a body in the world. Static bodies stay inactive.
func (i *Interface) ActivateBody(id BodyID) error {
	return i.setActive(id, true)
}

func (i *Interface) DeactivateBody(id BodyID) error {
	return i.setActive(id, false)
}

func (i *Interface) setActive(id BodyID, active bool) error {
	var err error
	werr := i.write(id, func(b *Body) {
		if !b.inBroadPhase {
			err = fmt.Errorf("%w: %v", ErrNotAdded, id)
			return
		}
		i.store.SetActive(b, active)
		b.writes++
	})
	if werr != nil {
		return werr
	}
	return err
}

func clampLen(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	if l := v.Len(); l > limit && l > 0 {
		return v.Mul(limit / l)
	}
	return v
}
