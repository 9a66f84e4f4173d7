// Package body owns every rigid body of a world and guards access to them.
//
// The [Store] hands out stable [BodyID] handles (slot index plus an 8-bit
// generation), so a handle to a removed body never aliases the slot's next
// occupant. All mutation goes through the [Interface] gateway.
//
// # Locking
//
// Body fields are guarded by a fixed array of reader/writer mutexes; a body
// belongs to shard index mod mutexCount. The [LockManager] hands out
// scoped guards:
//
//	lock := world.LockInterface().LockRead(id)
//	defer lock.Release()
//	if lock.SucceededAndIsInBroadPhase() {
//	    pos := lock.Body().Position()
//	}
//
// Creating, adding and removing bodies take the store's structural lock
// exclusively. The physics step holds it shared for its whole duration, so
// structural changes wait for the step to finish.
//
// Lock order is structural lock, then shards in ascending order, then the
// active set.
package body
