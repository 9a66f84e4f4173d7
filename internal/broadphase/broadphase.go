// Package broadphase keeps the coarse spatial index of bodies inserted in
// the world, partitioned by broad-phase layer.
//
// Each broad-phase layer holds a dense array of proxies kept sorted on the
// x lower bound, so a query sweeps only the prefix that can overlap.
// Insert and Remove change the structure and must not run concurrently
// with anything else. Update may run concurrently for distinct bodies, and
// Query may run concurrently with other queries once Sort has run.
package broadphase

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/shape"
)

var (
	ErrAlreadyPresent = errors.New("broadphase: body already inserted")
	ErrNotPresent     = errors.New("broadphase: body not inserted")
)

type Proxy struct {
	Index  uint32
	Layer  layers.ObjectLayer
	Bounds shape.AABB
}

type location struct {
	present bool
	bp      layers.BroadPhaseLayer
	pos     int32
}

type BroadPhase struct {
	table  *layers.Table
	mu     sync.Mutex
	loc    []location
	layers [][]Proxy
	dirty  []bool
	count  int
}

// New creates an index able to hold bodies with slot index < capacity.
func New(table *layers.Table, capacity uint) *BroadPhase {
	n := table.NumBroadPhaseLayers()
	return &BroadPhase{
		table:  table,
		loc:    make([]location, capacity),
		layers: make([][]Proxy, n),
		dirty:  make([]bool, n),
	}
}

func (b *BroadPhase) Insert(index uint32, layer layers.ObjectLayer, bounds shape.AABB) error {
	bp, err := b.table.Resolve(layer)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(index) >= len(b.loc) {
		return fmt.Errorf("broadphase: index %d beyond capacity %d", index, len(b.loc))
	}
	if b.loc[index].present {
		return ErrAlreadyPresent
	}
	b.loc[index] = location{present: true, bp: bp, pos: int32(len(b.layers[bp]))}
	b.layers[bp] = append(b.layers[bp], Proxy{Index: index, Layer: layer, Bounds: bounds})
	b.dirty[bp] = true
	b.count++
	return nil
}

func (b *BroadPhase) Remove(index uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(index) >= len(b.loc) || !b.loc[index].present {
		return ErrNotPresent
	}
	l := b.loc[index]
	proxies := b.layers[l.bp]
	last := len(proxies) - 1
	if int(l.pos) != last {
		proxies[l.pos] = proxies[last]
		b.loc[proxies[l.pos].Index].pos = l.pos
	}
	b.layers[l.bp] = proxies[:last]
	b.loc[index] = location{}
	b.dirty[l.bp] = true
	b.count--
	return nil
}

func (b *BroadPhase) Contains(index uint32) bool {
	return int(index) < len(b.loc) && b.loc[index].present
}

// Update moves the proxy of a body to new bounds.
func (b *BroadPhase) Update(index uint32, bounds shape.AABB) error {
	if !b.Contains(index) {
		return ErrNotPresent
	}
	l := b.loc[index]
	b.layers[l.bp][l.pos].Bounds = bounds
	return nil
}

// MarkMoved flags every layer as needing a re-sort. Call after a batch of
// Update calls and before querying.
func (b *BroadPhase) MarkMoved() {
	for i := range b.dirty {
		b.dirty[i] = true
	}
}

// Sort restores the sweep order of every layer touched since the last sort.
func (b *BroadPhase) Sort() {
	for bp := range b.layers {
		b.SortLayer(layers.BroadPhaseLayer(bp))
	}
}

// SortLayer sorts one layer; distinct layers may be sorted concurrently.
func (b *BroadPhase) SortLayer(bp layers.BroadPhaseLayer) {
	if !b.dirty[bp] {
		return
	}
	proxies := b.layers[bp]
	sort.Slice(proxies, func(i, j int) bool {
		if proxies[i].Bounds.Min[0] != proxies[j].Bounds.Min[0] {
			return proxies[i].Bounds.Min[0] < proxies[j].Bounds.Min[0]
		}
		return proxies[i].Index < proxies[j].Index
	})
	for i := range proxies {
		b.loc[proxies[i].Index].pos = int32(i)
	}
	b.dirty[bp] = false
}

// Query calls fn for every proxy in bp overlapping box until fn returns false.
func (b *BroadPhase) Query(bp layers.BroadPhaseLayer, box shape.AABB, fn func(Proxy) bool) {
	if int(bp) >= len(b.layers) {
		return
	}
	proxies := b.layers[bp]
	sorted := !b.dirty[bp]
	// proxies differ in width, so the sweep starts at 0 and stops past box.Max
	for i := range proxies {
		p := proxies[i]
		if p.Bounds.Min[0] > box.Max[0] {
			if sorted {
				break
			}
			continue
		}
		if !p.Bounds.Overlaps(box) {
			continue
		}
		if !fn(p) {
			return
		}
	}
}

// QueryFiltered queries every broad-phase layer the object layer may be
// tested against.
func (b *BroadPhase) QueryFiltered(layer layers.ObjectLayer, box shape.AABB, filter layers.ObjectVsBroadPhaseLayerFilter, fn func(Proxy) bool) {
	for bp := range b.layers {
		if !filter(layer, layers.BroadPhaseLayer(bp)) {
			continue
		}
		stop := false
		b.Query(layers.BroadPhaseLayer(bp), box, func(p Proxy) bool {
			if !fn(p) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return
		}
	}
}

func (b *BroadPhase) Count() int { return b.count }

func (b *BroadPhase) NumLayers() int { return len(b.layers) }

func (b *BroadPhase) LayerCount(bp layers.BroadPhaseLayer) int {
	if int(bp) >= len(b.layers) {
		return 0
	}
	return len(b.layers[bp])
}
