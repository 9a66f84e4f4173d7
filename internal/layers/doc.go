// Package layers classifies bodies for collision culling.
//
// A fine-grained [ObjectLayer] is attached to every body. The broad phase
// partitions its index by the much coarser [BroadPhaseLayer]; a [Table]
// is the fixed, total mapping between the two. Two predicates decide what
// is tested against what:
//
//   - [ObjectVsBroadPhaseLayerFilter]: may a body in an object layer be
//     tested against the proxies of a broad-phase layer
//   - [ObjectLayerPairFilter]: may two object layers ever collide
//
// # Example
//
//	table := layers.DefaultTable()
//	bp, err := table.Resolve(layers.Moving)
//	ok := layers.DefaultPairFilter(layers.Moving, layers.NonMoving)
package layers
