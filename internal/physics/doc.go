// Package physics drives the simulation of a world of rigid bodies.
//
// A [World] owns the body store, the layer configuration and the broad
// phase. Each call to [World.Step] advances time by fanning work out over a
// [jobs.Pool], carving its working buffers out of a [scratch.Allocator],
// and handing contact pairs to a [solver.Service]:
//
//   - BroadPhaseUpdate: recompute bounds of moving bodies and re-sort
//   - NarrowPhase: collect candidate pairs through the layer filters
//   - Solve: resolve contacts and apply impulses
//   - Integrate: gravity, damping and motion over the sub-steps
//
// Phases are joined by barriers in that order. Results are committed with
// every body shard held exclusively, so a concurrent reader sees either the
// state before the step or after it. A step that fails leaves the world as
// it was.
//
// # Example
//
//	world, _ := physics.New(physics.DefaultSettings())
//	bi := world.BodyInterface()
//	id, _ := bi.CreateAndAdd(settings, body.Activate)
//
//	alloc := scratch.New(scratch.DefaultSize)
//	pool := jobs.NewPool(2048, 8, 0)
//	defer pool.Close()
//	for i := 0; i < 60; i++ {
//	    if err := world.Step(1.0/60, 1, 1, alloc, pool); err != nil {
//	        return err
//	    }
//	}
//
// # Thread Safety
//
// Step calls are serialized. Body access from other goroutines goes through
// the lock interface and may run while a step is in progress; creating,
// adding and removing bodies waits for the step to finish.
package physics
