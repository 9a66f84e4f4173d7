package abi

import (
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/jobs"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/scratch"
	"github.com/san-kum/rigidsim/internal/shape"
)

// Runtime owns the handle tables of one boundary surface.
type Runtime struct {
	systems    Handles[*system]
	tables     Handles[*layers.Table]
	allocators Handles[*scratch.Allocator]
	pools      Handles[*jobs.Pool]
	shapes     Handles[shape.Shape]
	filters    Handles[*body.GroupFilterTable]

	mu     sync.RWMutex
	closed bool
	log    logr.Logger
}

func NewRuntime(log logr.Logger) *Runtime {
	return &Runtime{log: log}
}

var (
	defaultOnce  sync.Once
	factoryOnce  sync.Once
	allocOnce    sync.Once
	typesOnce    sync.Once
	shutdownOnce sync.Once

	defaultRuntime *Runtime
	// set once by RegisterDefaultAllocator, read from any goroutine
	newAllocator atomic.Pointer[func(size int) *scratch.Allocator]
)

// Default returns the process-wide runtime.
func Default() *Runtime {
	defaultOnce.Do(func() { defaultRuntime = NewRuntime(logr.Discard()) })
	return defaultRuntime
}

// InitDefaultFactory creates the process-wide runtime.
func InitDefaultFactory() {
	factoryOnce.Do(func() { Default() })
}

// RegisterDefaultAllocator installs the arena allocator used by
// NewTempAllocator. Until then NewTempAllocator creates nothing.
func RegisterDefaultAllocator() {
	allocOnce.Do(func() {
		fn := scratch.New
		newAllocator.Store(&fn)
	})
}

// RegisterTypes registers the built-in shape factories.
func RegisterTypes() {
	typesOnce.Do(shape.RegisterDefaultTypes)
}

// Shutdown closes every resource held by the default runtime. Later calls
// are no-ops.
func Shutdown() {
	shutdownOnce.Do(func() { Default().Close() })
}

// Close deletes every live handle and stops every job pool. Calls on a
// closed runtime fail with ErrShutdown.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	for _, p := range r.pools.Drain() {
		p.Close()
	}
	n := len(r.systems.Drain())
	r.tables.Drain()
	r.allocators.Drain()
	r.shapes.Drain()
	r.filters.Drain()
	r.log.V(1).Info("runtime shut down", "systems", n)
}

func (r *Runtime) live() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrShutdown
	}
	return nil
}

// NewBPLayerInterface returns a handle to the default layer table.
func (r *Runtime) NewBPLayerInterface() Handle {
	return r.tables.Insert(layers.DefaultTable())
}

// NewBPLayerInterfaceFromMapping builds a table mapping object layer i to
// mapping[i].
func (r *Runtime) NewBPLayerInterfaceFromMapping(mapping []uint8, numBroadPhaseLayers uint) (Handle, error) {
	m := make([]layers.BroadPhaseLayer, len(mapping))
	for i, v := range mapping {
		m[i] = layers.BroadPhaseLayer(v)
	}
	t, err := layers.NewTable(m, numBroadPhaseLayers)
	if err != nil {
		return 0, err
	}
	return r.tables.Insert(t), nil
}

func (r *Runtime) DeleteBPLayerInterface(h Handle) error {
	_, err := r.tables.Remove(h)
	return err
}

// NewTempAllocator returns 0 until RegisterDefaultAllocator has run.
func (r *Runtime) NewTempAllocator(size int) Handle {
	fn := newAllocator.Load()
	if fn == nil {
		return 0
	}
	return r.allocators.Insert((*fn)(size))
}

func (r *Runtime) DeleteTempAllocator(h Handle) error {
	_, err := r.allocators.Remove(h)
	return err
}

func (r *Runtime) NewJobSystemThreadPool(maxJobs, maxBarriers uint32, threads int32) Handle {
	return r.pools.Insert(jobs.NewPool(uint(maxJobs), uint(maxBarriers), int(threads), jobs.WithLogger(r.log)))
}

// DeleteJobSystemThreadPool stops the pool's workers after queued jobs finish.
func (r *Runtime) DeleteJobSystemThreadPool(h Handle) error {
	p, err := r.pools.Remove(h)
	if err != nil {
		return err
	}
	p.Close()
	return nil
}

func (r *Runtime) NewBoxShape(halfExtent Vec4, convexRadius float32) (Handle, error) {
	return r.newShape(shape.NewBox(vec3(halfExtent), float64(convexRadius)))
}

func (r *Runtime) NewSphereShape(radius float32) (Handle, error) {
	return r.newShape(shape.NewSphere(float64(radius)))
}

func (r *Runtime) newShape(s shape.Shape) (Handle, error) {
	if !s.Valid() {
		return 0, shape.ErrDegenerate
	}
	return r.shapes.Insert(s), nil
}

func (r *Runtime) DeleteShape(h Handle) error {
	_, err := r.shapes.Remove(h)
	return err
}

func (r *Runtime) NewGroupFilterTable(numSubGroups uint32) Handle {
	return r.filters.Insert(body.NewGroupFilterTable(numSubGroups))
}

func (r *Runtime) GroupFilterTableDisableCollision(h Handle, a, b uint32) error {
	t, err := r.filters.Get(h)
	if err != nil {
		return err
	}
	t.DisableCollision(a, b)
	return nil
}

func (r *Runtime) DeleteGroupFilterTable(h Handle) error {
	_, err := r.filters.Remove(h)
	return err
}
