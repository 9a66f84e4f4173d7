package physics

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/jobs"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/scratch"
	"github.com/san-kum/rigidsim/internal/solver"
)

// chunk sizes handed to ParallelFor per phase
const (
	gatherChunk    = 16
	boundsChunk    = 32
	pairChunk      = 8
	integrateChunk = 32
)

// motionProps runs parallel to the solver working set and holds what the
// solver does not need. It lives in the scratch arena, so it stays pointer-free.
type motionProps struct {
	LinearDamping  float64
	AngularDamping float64
	MaxLinear      float64
	MaxAngular     float64
	SleepTimer     float64
	Writes         uint32
	BP             layers.BroadPhaseLayer
	AllowSleeping  bool
	// Active bodies are integrated; Touched ones are written back on commit.
	Active  bool
	Touched bool
}

type stepper struct {
	w     *World
	store *body.Store
	bp    *broadphase.BroadPhase
	alloc *scratch.Allocator
	pool  *jobs.Pool

	dt             float64
	collisionSteps int
	subSteps       int

	work  []solver.Body
	props []motionProps
	// slot index to working set index plus one; zero means absent
	slotToWork []int32
	pairs      []solver.Pair
	n          int

	stats StepStats
	slept atomic.Int64
}

// Step advances the world by dt. Each of the collisionSteps runs the broad
// phase, narrow phase and solver once and integrates over
// integrationSubSteps sub-steps. On failure the error is a *StepError and
// the world is left as it was before the call.
func (w *World) Step(dt float64, collisionSteps, integrationSubSteps int, alloc *scratch.Allocator, pool *jobs.Pool) error {
	switch {
	case !(dt > 0) || math.IsInf(dt, 0):
		return fmt.Errorf("%w: dt must be positive and finite, got %v", ErrInvalidStep, dt)
	case collisionSteps < 1 || integrationSubSteps < 1:
		return fmt.Errorf("%w: %d collision steps, %d sub-steps", ErrInvalidStep, collisionSteps, integrationSubSteps)
	case alloc == nil || pool == nil:
		return fmt.Errorf("%w: nil allocator or job pool", ErrInvalidStep)
	}

	w.stepMu.Lock()
	defer w.stepMu.Unlock()
	start := time.Now()

	alloc.Reset()
	w.store.LockStructureShared()
	defer w.store.UnlockStructureShared()
	defer w.setState(Idle)

	s := &stepper{
		w:              w,
		store:          w.store,
		bp:             w.store.BroadPhase(),
		alloc:          alloc,
		pool:           pool,
		dt:             dt / float64(collisionSteps),
		collisionSteps: collisionSteps,
		subSteps:       integrationSubSteps,
	}
	if err := s.run(); err != nil {
		var se *StepError
		if errors.As(err, &se) {
			w.log.Error(err, "step aborted", "phase", se.Phase.String(), "collisionStep", se.CollisionStep)
		}
		return err
	}

	s.stats.Step = w.steps.Add(1)
	s.stats.ActiveBodies = w.store.NumActiveBodies()
	s.stats.Slept = int(s.slept.Load())
	s.stats.ScratchUsed = alloc.Used()
	s.stats.Duration = time.Since(start)
	w.last.Store(&s.stats)
	w.log.V(1).Info("step", "step", s.stats.Step, "active", s.stats.ActiveBodies,
		"pairs", s.stats.Pairs, "contacts", s.stats.Contacts, "scratch", s.stats.ScratchUsed,
		"duration", s.stats.Duration)
	return nil
}

func (s *stepper) fail(phase State, step int, err error) error {
	return &StepError{Phase: phase, CollisionStep: step, Wrapped: err}
}

func (s *stepper) run() error {
	s.w.setState(Gather)
	if err := s.gather(); err != nil {
		return s.fail(Gather, 0, err)
	}
	for c := 0; c < s.collisionSteps; c++ {
		if err := s.collide(c); err != nil {
			s.restoreBroadPhase()
			return err
		}
	}

	s.w.setState(BroadPhaseUpdate)
	if err := s.updateBroadPhase(); err != nil {
		s.restoreBroadPhase()
		return s.fail(BroadPhaseUpdate, s.collisionSteps-1, err)
	}

	s.commit()
	return nil
}

// gather carves the working set out of the arena and copies every active
// body into it.
func (s *stepper) gather() error {
	var err error
	capacity := s.bp.Count()
	if s.work, err = scratch.Alloc[solver.Body](s.alloc, capacity); err != nil {
		return err
	}
	if s.props, err = scratch.Alloc[motionProps](s.alloc, capacity); err != nil {
		return err
	}
	if s.slotToWork, err = scratch.Alloc[int32](s.alloc, s.store.MaxBodies()); err != nil {
		return err
	}
	if s.pairs, err = scratch.Alloc[solver.Pair](s.alloc, int(s.w.settings.MaxBodyPairs)); err != nil {
		return err
	}
	ids, err := scratch.Alloc[body.BodyID](s.alloc, s.store.NumActiveBodies())
	if err != nil {
		return err
	}
	ids = ids[:s.store.CopyActive(ids)]

	locks := s.store.Locks()
	s.n = len(ids)
	return s.pool.ParallelFor(len(ids), gatherChunk, func(start, end int) {
		for i := start; i < end; i++ {
			l := locks.LockRead(ids[i])
			if b := l.Body(); b != nil {
				s.load(i, b, true)
			}
			l.Release()
		}
	})
}

func (s *stepper) load(i int, b *body.Body, active bool) {
	ms := b.MotionState()
	bp, _ := s.store.Table().Resolve(b.ObjectLayer())
	s.work[i] = solver.Body{
		ID:              b.ID(),
		Layer:           b.ObjectLayer(),
		Motion:          b.MotionType(),
		Sensor:          b.IsSensor(),
		Position:        ms.Position,
		Rotation:        ms.Rotation,
		LinearVelocity:  ms.LinearVelocity,
		AngularVelocity: ms.AngularVelocity,
		InvMass:         b.InverseMass(),
		InvInertia:      b.InverseInertia(),
		Friction:        b.Friction(),
		Restitution:     b.Restitution(),
		GravityFactor:   b.GravityFactor(),
		Bounds:          b.Bounds(),
	}
	active = active && !b.IsStatic()
	s.props[i] = motionProps{
		LinearDamping:  b.LinearDamping(),
		AngularDamping: b.AngularDamping(),
		MaxLinear:      b.MaxLinearVelocity(),
		MaxAngular:     b.MaxAngularVelocity(),
		SleepTimer:     ms.SleepTimer,
		Writes:         b.Writes(),
		BP:             bp,
		AllowSleeping:  b.AllowSleeping(),
		Active:         active,
		Touched:        active,
	}
	s.slotToWork[b.ID().Index()] = int32(i + 1)
}

func (s *stepper) collide(c int) error {
	s.w.setState(BroadPhaseUpdate)
	if err := s.updateBroadPhase(); err != nil {
		return s.fail(BroadPhaseUpdate, c, err)
	}

	s.w.setState(NarrowPhase)
	np, err := s.findPairs()
	if err != nil {
		return s.fail(NarrowPhase, c, err)
	}

	s.w.setState(Solve)
	if err := s.solve(s.pairs[:np]); err != nil {
		return s.fail(Solve, c, err)
	}

	s.w.setState(Integrate)
	if err := s.integrate(); err != nil {
		return s.fail(Integrate, c, err)
	}
	if err := s.detectSleep(); err != nil {
		return s.fail(Integrate, c, err)
	}
	return nil
}

// updateBroadPhase refreshes the proxies of every body the step moved and
// re-sorts the broad-phase layers.
func (s *stepper) updateBroadPhase() error {
	err := s.pool.ParallelFor(s.n, boundsChunk, func(start, end int) {
		for i := start; i < end; i++ {
			wb := &s.work[i]
			if !s.props[i].Touched || wb.Motion == body.Static {
				continue
			}
			b := s.store.BodyAtIndex(wb.ID.Index())
			wb.Bounds = b.Shape().Bounds(wb.Position, wb.Rotation)
			_ = s.bp.Update(wb.ID.Index(), wb.Bounds)
		}
	})
	if err != nil {
		return err
	}
	s.bp.MarkMoved()
	return s.pool.ParallelFor(s.bp.NumLayers(), 1, func(start, end int) {
		for l := start; l < end; l++ {
			s.bp.SortLayer(layers.BroadPhaseLayer(l))
		}
	})
}

// restoreBroadPhase puts the proxies back at the committed body positions
// after an aborted step.
func (s *stepper) restoreBroadPhase() {
	locks := s.store.Locks()
	for i := 0; i < s.n; i++ {
		if !s.props[i].Touched {
			continue
		}
		l := locks.LockRead(s.work[i].ID)
		if b := l.Body(); b != nil {
			_ = s.bp.Update(b.ID().Index(), b.Bounds())
		}
		l.Release()
	}
	s.bp.MarkMoved()
	s.bp.Sort()
}

// findPairs queries the broad phase for every active body. A pair seen from
// both sides is kept only by the body earlier in the working set.
func (s *stepper) findPairs() (int, error) {
	objVsBP := s.w.settings.ObjectVsBroadPhase
	pairFilter := s.w.settings.PairFilter
	limit := int64(len(s.pairs))
	var found, dropped atomic.Int64

	n := s.n
	err := s.pool.ParallelFor(n, pairChunk, func(start, end int) {
		for i := start; i < end; i++ {
			p := &s.props[i]
			if !p.Active {
				continue
			}
			a := &s.work[i]
			self := a.ID.Index()
			groupA := s.store.BodyAtIndex(self).CollisionGroup()

			s.bp.QueryFiltered(a.Layer, a.Bounds, objVsBP, func(px broadphase.Proxy) bool {
				if px.Index == self || !pairFilter(a.Layer, px.Layer) {
					return true
				}
				if !groupA.CanCollide(s.store.BodyAtIndex(px.Index).CollisionGroup()) {
					return true
				}
				if j := int(s.slotToWork[px.Index]) - 1; j >= 0 && j < i && s.props[j].Active &&
					objVsBP(px.Layer, p.BP) && pairFilter(px.Layer, a.Layer) {
					return true
				}
				k := found.Add(1) - 1
				if k >= limit {
					dropped.Add(1)
					return true
				}
				s.pairs[k] = solver.Pair{A: int32(i), B: int32(px.Index)}
				return true
			})
		}
	})
	if err != nil {
		return 0, err
	}

	np := int(min(found.Load(), limit))
	if d := dropped.Load(); d > 0 {
		s.stats.DroppedPairs += int(d)
		s.w.log.Info("body pair limit reached, dropping pairs", "dropped", d, "maxBodyPairs", limit)
	}
	pairs := s.pairs[:np]
	slices.SortFunc(pairs, func(x, y solver.Pair) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})

	// B still holds a slot index; resolve it into the working set, loading
	// bodies not yet in it and waking sleeping ones. A body that cannot be
	// locked loses its pairs.
	locks := s.store.Locks()
	kept := 0
	for k := range pairs {
		pair := pairs[k]
		slot := uint32(pair.B)
		j := int(s.slotToWork[slot]) - 1
		if j < 0 {
			if other := s.store.BodyAtIndex(slot); other != nil {
				l := locks.LockRead(other.ID())
				if b := l.Body(); b != nil {
					j = s.n
					s.load(j, b, false)
					s.n++
				}
				l.Release()
			}
		}
		if j < 0 {
			s.stats.DroppedPairs++
			continue
		}
		pair.B = int32(j)
		pairs[kept] = pair
		kept++

		a, b := &s.work[pair.A], &s.work[j]
		if pb := &s.props[j]; !pb.Active && b.Motion != body.Static && !a.Sensor && !b.Sensor {
			pb.Active, pb.Touched, pb.SleepTimer = true, true, 0
			s.stats.Woken++
		}
	}
	s.stats.Pairs += kept
	return kept, nil
}

func (s *stepper) solve(pairs []solver.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	results, err := s.w.solver.Solve(solver.Input{
		Bodies:  s.work[:s.n],
		Pairs:   pairs,
		Dt:      s.dt,
		Gravity: s.w.settings.Gravity,
	})
	if err != nil {
		return err
	}

	if limit := int(s.w.settings.MaxContactConstraints); len(results) > limit {
		d := len(results) - limit
		s.stats.DroppedContacts += d
		s.w.log.Info("contact constraint limit reached, dropping contacts", "dropped", d, "maxContactConstraints", limit)
		results = results[:limit]
	}
	for _, r := range results {
		if r.Body < 0 || int(r.Body) >= s.n {
			return fmt.Errorf("%w: body %d with %d in working set", ErrSolverResult, r.Body, s.n)
		}
	}
	s.stats.Contacts += len(results)

	slices.SortStableFunc(results, func(x, y solver.Result) int { return cmp.Compare(x.Body, y.Body) })
	// one job per body range, so no two jobs touch the same body
	return s.pool.ParallelFor(s.n, integrateChunk, func(start, end int) {
		k := sort.Search(len(results), func(k int) bool { return results[k].Body >= int32(start) })
		for ; k < len(results) && int(results[k].Body) < end; k++ {
			s.apply(int(results[k].Body), &results[k])
		}
	})
}

func (s *stepper) apply(i int, r *solver.Result) {
	b := &s.work[i]
	if !s.props[i].Active || b.Motion != body.Dynamic {
		return
	}
	b.LinearVelocity = b.LinearVelocity.Add(r.LinearImpulse.Mul(b.InvMass))
	if r.AngularImpulse != (mgl64.Vec3{}) {
		local := b.Rotation.Conjugate().Rotate(r.AngularImpulse)
		for k := 0; k < 3; k++ {
			local[k] *= b.InvInertia[k]
		}
		b.AngularVelocity = b.AngularVelocity.Add(b.Rotation.Rotate(local))
	}
	b.Position = b.Position.Add(r.PositionCorrection)
}

func (s *stepper) integrate() error {
	h := s.dt / float64(s.subSteps)
	g := s.w.settings.Gravity
	for sub := 0; sub < s.subSteps; sub++ {
		err := s.pool.ParallelFor(s.n, integrateChunk, func(start, end int) {
			for i := start; i < end; i++ {
				s.integrateBody(i, h, g)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *stepper) integrateBody(i int, h float64, g mgl64.Vec3) {
	p := &s.props[i]
	b := &s.work[i]
	if !p.Active || b.Motion == body.Static {
		return
	}
	if b.Motion == body.Dynamic {
		b.LinearVelocity = b.LinearVelocity.Add(g.Mul(b.GravityFactor * h))
		b.LinearVelocity = b.LinearVelocity.Mul(math.Max(0, 1-p.LinearDamping*h))
		b.AngularVelocity = b.AngularVelocity.Mul(math.Max(0, 1-p.AngularDamping*h))
	}
	b.LinearVelocity = clampLen(b.LinearVelocity, p.MaxLinear)
	b.AngularVelocity = clampLen(b.AngularVelocity, p.MaxAngular)

	b.Position = b.Position.Add(b.LinearVelocity.Mul(h))
	if w := b.AngularVelocity; w != (mgl64.Vec3{}) {
		spin := mgl64.Quat{W: 0, V: w}.Mul(b.Rotation).Scale(0.5 * h)
		b.Rotation = b.Rotation.Add(spin).Normalize()
	}
}

func (s *stepper) detectSleep() error {
	threshold := s.w.settings.SleepVelocity
	need := s.w.settings.TimeBeforeSleep
	return s.pool.ParallelFor(s.n, integrateChunk, func(start, end int) {
		for i := start; i < end; i++ {
			p := &s.props[i]
			b := &s.work[i]
			if !p.Active || !p.AllowSleeping || b.Motion == body.Static {
				continue
			}
			if b.LinearVelocity.Len() >= threshold || b.AngularVelocity.Len() >= threshold {
				p.SleepTimer = 0
				continue
			}
			p.SleepTimer += s.dt
			if p.SleepTimer >= need {
				p.Active = false
				b.LinearVelocity, b.AngularVelocity = mgl64.Vec3{}, mgl64.Vec3{}
				s.slept.Add(1)
			}
		}
	})
}

// commit writes the working set back with every shard held, so readers
// never observe a partly applied step.
func (s *stepper) commit() {
	s.w.setState(Commit)
	locks := s.store.Locks()
	locks.LockAll()
	defer locks.UnlockAll()
	for i := 0; i < s.n; i++ {
		p := &s.props[i]
		if !p.Touched {
			continue
		}
		wb := &s.work[i]
		b := s.store.BodyAtIndex(wb.ID.Index())
		ms := body.MotionState{
			Position:        wb.Position,
			Rotation:        wb.Rotation,
			LinearVelocity:  wb.LinearVelocity,
			AngularVelocity: wb.AngularVelocity,
			SleepTimer:      p.SleepTimer,
		}
		if b.Writes() != p.Writes {
			// written through the body interface after gather; the
			// caller's velocities and activation win over the step's
			ms.LinearVelocity, ms.AngularVelocity = b.LinearVelocity(), b.AngularVelocity()
			ms.SleepTimer = 0
			b.SetMotionState(ms)
			continue
		}
		b.SetMotionState(ms)
		s.store.SetActive(b, p.Active)
	}
}

func clampLen(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	if l := v.Len(); l > limit && l > 0 {
		return v.Mul(limit / l)
	}
	return v
}
