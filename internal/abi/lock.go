package abi

// BodyLockReadConstruct locks id shared into lock. The caller must call
// BodyLockReadDestruct on the same lock, even when the lock failed.
// Holding a lock across PhysicsSystemUpdate on the same goroutine
// deadlocks.
func (r *Runtime) BodyLockReadConstruct(lock *BodyLockRead, sysH Handle, id BodyID) error {
	w, err := r.world(sysH)
	if err != nil {
		return err
	}
	*lock = BodyLockRead{lock: w.LockInterface().LockRead(id), store: w.Store()}
	return nil
}

func BodyLockReadDestruct(lock *BodyLockRead) { lock.lock.Release() }

func BodyLockReadSucceeded(lock *BodyLockRead) bool { return lock.lock.Succeeded() }

func BodyLockReadSucceededAndIsInBroadPhase(lock *BodyLockRead) bool {
	return lock.lock.SucceededAndIsInBroadPhase()
}

func (r *Runtime) BodyLockWriteConstruct(lock *BodyLockWrite, sysH Handle, id BodyID) error {
	w, err := r.world(sysH)
	if err != nil {
		return err
	}
	*lock = BodyLockWrite{lock: w.LockInterface().LockWrite(id), store: w.Store()}
	return nil
}

func BodyLockWriteDestruct(lock *BodyLockWrite) { lock.lock.Release() }

func BodyLockWriteSucceeded(lock *BodyLockWrite) bool { return lock.lock.Succeeded() }

func BodyLockWriteSucceededAndIsInBroadPhase(lock *BodyLockWrite) bool {
	return lock.lock.SucceededAndIsInBroadPhase()
}

// The body accessors below return zero values when the lock failed.

func BodyGetID(lock *BodyLockRead) BodyID {
	if b := lock.lock.Body(); b != nil {
		return b.ID()
	}
	return InvalidBodyID
}

func BodyGetPosition(lock *BodyLockRead) Vec4 {
	if b := lock.lock.Body(); b != nil {
		return fromVec3(b.Position())
	}
	return Vec4{}
}

func BodyGetRotation(lock *BodyLockRead) Vec4 {
	if b := lock.lock.Body(); b != nil {
		return fromQuat(b.Rotation())
	}
	return Vec4{W: 1}
}

func BodyGetLinearVelocity(lock *BodyLockRead) Vec4 {
	if b := lock.lock.Body(); b != nil {
		return fromVec3(b.LinearVelocity())
	}
	return Vec4{}
}

func BodyIsActive(lock *BodyLockRead) bool {
	if b := lock.lock.Body(); b != nil {
		return lock.store.IsBodyActive(b)
	}
	return false
}

func BodyGetUserData(lock *BodyLockRead) uint64 {
	if b := lock.lock.Body(); b != nil {
		return b.UserData()
	}
	return 0
}

func BodySetUserData(lock *BodyLockWrite, tag uint64) bool {
	b := lock.lock.Body()
	if b == nil {
		return false
	}
	b.SetUserData(tag)
	return true
}
