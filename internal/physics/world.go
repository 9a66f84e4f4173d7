package physics

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-logr/logr"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/solver"
)

type World struct {
	settings Settings
	store    *body.Store
	bodies   *body.Interface
	solver   solver.Service
	log      logr.Logger

	stepMu sync.Mutex
	state  atomic.Uint32
	steps  atomic.Uint64
	last   atomic.Pointer[StepStats]
}

// StepStats describes the most recent successful step.
type StepStats struct {
	Step            uint64
	ActiveBodies    int
	Pairs           int
	DroppedPairs    int
	Contacts        int
	DroppedContacts int
	Woken           int
	Slept           int
	ScratchUsed     int
	Duration        time.Duration
}

// BodyState is a copy of one body taken by World.Snapshot.
type BodyState struct {
	ID     body.BodyID
	Layer  layers.ObjectLayer
	Motion body.MotionType
	Active bool
	Mass   float64
	body.MotionState
}

func New(settings Settings, opts ...Option) (*World, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	store, err := body.NewStore(settings.MaxBodies, settings.NumBodyMutexes, settings.Layers)
	if err != nil {
		return nil, err
	}
	w := &World{
		settings: settings,
		store:    store,
		bodies:   store.Interface(),
		solver:   solver.NewAABBContact(),
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.last.Store(&StepStats{})
	return w, nil
}

func (w *World) BodyInterface() *body.Interface       { return w.bodies }
func (w *World) BodyInterfaceNoLock() *body.Interface { return w.bodies.NoLock() }
func (w *World) LockInterface() *body.LockManager     { return w.store.Locks() }
func (w *World) Store() *body.Store                   { return w.store }
func (w *World) Settings() Settings                   { return w.settings }
func (w *World) Gravity() mgl64.Vec3                  { return w.settings.Gravity }
func (w *World) NumBodies() int                       { return w.store.NumBodies() }
func (w *World) NumActiveBodies() int                 { return w.store.NumActiveBodies() }
func (w *World) State() State                         { return State(w.state.Load()) }
func (w *World) Steps() uint64                        { return w.steps.Load() }

// ActiveBodies yields the ids active when ranging starts; see body.Store.
func (w *World) ActiveBodies() iter.Seq[body.BodyID] { return w.store.ActiveBodies() }

// LastStepStats returns the statistics of the last successful step.
func (w *World) LastStepStats() StepStats { return *w.last.Load() }

func (w *World) setState(s State) { w.state.Store(uint32(s)) }

// Snapshot copies the state of every body in the world. It takes each
// body's shard lock shared, so it may run while a step is in progress and
// then sees every body either before or after the step.
func (w *World) Snapshot() []BodyState {
	ids := w.store.BodyIDs()
	out := make([]BodyState, 0, len(ids))
	locks := w.store.Locks()
	for _, id := range ids {
		l := locks.LockRead(id)
		if l.SucceededAndIsInBroadPhase() {
			b := l.Body()
			out = append(out, BodyState{
				ID:          id,
				Layer:       b.ObjectLayer(),
				Motion:      b.MotionType(),
				Active:      w.store.IsBodyActive(b),
				Mass:        b.Mass(),
				MotionState: b.MotionState(),
			})
		}
		l.Release()
	}
	return out
}
