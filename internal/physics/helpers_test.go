package physics_test

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/jobs"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/physics"
	"github.com/san-kum/rigidsim/internal/scratch"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/solver"
)

const dt = 1.0 / 60

type fixture struct {
	world *physics.World
	bi    *body.Interface
	alloc *scratch.Allocator
	pool  *jobs.Pool
}

func newFixture(tb testing.TB, settings physics.Settings, opts ...physics.Option) *fixture {
	tb.Helper()
	w, err := physics.New(settings, opts...)
	if err != nil {
		tb.Fatalf("physics.New: %v", err)
	}
	pool := jobs.NewPool(1024, 16, 4)
	tb.Cleanup(pool.Close)
	return &fixture{world: w, bi: w.BodyInterface(), alloc: scratch.New(scratch.DefaultSize), pool: pool}
}

func (f *fixture) step(tb testing.TB) {
	tb.Helper()
	if err := f.world.Step(dt, 1, 1, f.alloc, f.pool); err != nil {
		tb.Fatalf("Step: %v", err)
	}
}

func (f *fixture) add(tb testing.TB, cs body.CreationSettings, act body.Activation) body.BodyID {
	tb.Helper()
	id, err := f.bi.CreateAndAdd(cs, act)
	if err != nil {
		tb.Fatalf("CreateAndAdd: %v", err)
	}
	return id
}

func (f *fixture) y(tb testing.TB, id body.BodyID) float64 {
	tb.Helper()
	p, err := f.bi.GetPosition(id)
	if err != nil {
		tb.Fatalf("GetPosition: %v", err)
	}
	return p[1]
}

func cube(y float64, motion body.MotionType, layer layers.ObjectLayer) body.CreationSettings {
	cs := body.NewCreationSettings(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}, 0.05),
		mgl64.Vec3{0, y, 0}, mgl64.QuatIdent(), motion, layer)
	return cs
}

// ground is a static slab whose top face is at y = 0.
func ground() body.CreationSettings {
	return body.NewCreationSettings(shape.NewBox(mgl64.Vec3{50, 0.5, 50}, 0.05),
		mgl64.Vec3{0, -0.5, 0}, mgl64.QuatIdent(), body.Static, layers.NonMoving)
}

// recordingSolver stops dynamic bodies that touch a static one, cancelling
// the gravity the next integration adds. It records every pair it sees.
type recordingSolver struct {
	mu    sync.Mutex
	calls int
	pairs [][2]body.BodyID
}

func (r *recordingSolver) Solve(in solver.Input) ([]solver.Result, error) {
	r.mu.Lock()
	r.calls++
	for _, p := range in.Pairs {
		r.pairs = append(r.pairs, [2]body.BodyID{in.Bodies[p.A].ID, in.Bodies[p.B].ID})
	}
	r.mu.Unlock()

	var out []solver.Result
	for _, p := range in.Pairs {
		a, b := in.Bodies[p.A], in.Bodies[p.B]
		dyn, idx := a, p.A
		if a.Motion == body.Static {
			dyn, idx = b, p.B
		} else if b.Motion != body.Static {
			continue
		}
		if dyn.InvMass == 0 {
			continue
		}
		stop := dyn.LinearVelocity.Add(in.Gravity.Mul(dyn.GravityFactor * in.Dt)).Mul(-1)
		out = append(out, solver.Result{Body: idx, LinearImpulse: stop.Mul(1 / dyn.InvMass)})
	}
	return out, nil
}

func (r *recordingSolver) saw(a, b body.BodyID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pairs {
		if (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a) {
			return true
		}
	}
	return false
}

func (r *recordingSolver) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = 0
	r.pairs = nil
}
