// Package abi exposes the world through a flat, handle-based surface for
// callers across a language boundary.
//
// Owned resources (physics systems, layer tables, temp allocators, job
// pools, shapes) live in generation-checked handle tables, so a deleted or
// foreign handle fails with [ErrStaleHandle] instead of touching freed
// state. Values crossing the boundary are fixed-size structs of float32 and
// integer fields; the SizeOf functions report their sizes.
//
// Process-wide registration ([InitDefaultFactory], [RegisterDefaultAllocator],
// [RegisterTypes]) runs once no matter how often it is called, and
// [Shutdown] tears the default [Runtime] down once.
//
// # Example
//
//	abi.RegisterDefaultAllocator()
//	abi.InitDefaultFactory()
//	abi.RegisterTypes()
//	defer abi.Shutdown()
//
//	rt := abi.Default()
//	sys, _ := rt.NewPhysicsSystem()
//	if err := rt.PhysicsSystemInit(sys, 1024, 0, 1024, 1024, rt.NewBPLayerInterface(), nil, nil); err != nil {
//		return err
//	}
//	alloc := rt.NewTempAllocator(10 << 20)
//	pool := rt.NewJobSystemThreadPool(2048, 8, -1)
//	err := rt.PhysicsSystemUpdate(sys, 1.0/60, 1, 1, alloc, pool)
package abi
