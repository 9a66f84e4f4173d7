package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/jobs"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/physics"
	"github.com/san-kum/rigidsim/internal/scratch"
	"github.com/san-kum/rigidsim/internal/solver"
)

// Frame is what observers see after every step.
type Frame struct {
	Step   int
	Time   float64
	Bodies []physics.BodyState
	Stats  physics.StepStats
}

type Observer interface {
	OnStep(f Frame)
}

type ObserverFunc func(f Frame)

func (fn ObserverFunc) OnStep(f Frame) { fn(f) }

// Result is the trajectory of every non-static body: for each body the
// columns name.x, name.y, name.z and name.speed.
type Result struct {
	Scene    string
	Columns  []string
	Times    []float64
	States   [][]float64
	Metrics  map[string]float64
	Steps    int
	Stats    physics.StepStats
	Duration time.Duration
}

type Option func(*Experiment)

func WithLogger(l logr.Logger) Option {
	return func(e *Experiment) { e.log = l }
}

func WithSolver(s solver.Service) Option {
	return func(e *Experiment) { e.solver = s }
}

// Experiment runs one scene on its own world, arena and job pool.
type Experiment struct {
	cfg       *config.Config
	world     *physics.World
	bodies    []Tracked
	alloc     *scratch.Allocator
	pool      *jobs.Pool
	metrics   []metrics.Metric
	observers []Observer
	log       logr.Logger
	solver    solver.Service

	step int
	t    float64
}

func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	e := &Experiment{cfg: cfg, log: logr.Discard()}
	for _, opt := range opts {
		opt(e)
	}

	wopts := []physics.Option{physics.WithLogger(e.log.WithName("physics"))}
	if e.solver != nil {
		wopts = append(wopts, physics.WithSolver(e.solver))
	}
	w, tracked, err := BuildWorld(cfg, wopts...)
	if err != nil {
		return nil, fmt.Errorf("build scene %s: %w", cfg.Scene, err)
	}
	e.world = w
	e.bodies = tracked
	e.alloc = scratch.New(cfg.ScratchSize)
	e.pool = jobs.NewPool(config.DefaultMaxJobs, config.DefaultMaxBarriers, cfg.Threads, jobs.WithLogger(e.log.WithName("jobs")))
	e.log.V(1).Info("scene built", "scene", cfg.Scene, "bodies", len(tracked), "threads", e.pool.Threads())
	return e, nil
}

func (e *Experiment) AddMetric(m metrics.Metric)    { e.metrics = append(e.metrics, m) }
func (e *Experiment) AddObserver(o Observer)        { e.observers = append(e.observers, o) }
func (e *Experiment) World() *physics.World         { return e.world }
func (e *Experiment) Bodies() []Tracked             { return e.bodies }
func (e *Experiment) Config() *config.Config        { return e.cfg }
func (e *Experiment) Time() float64                 { return e.t }
func (e *Experiment) Allocator() *scratch.Allocator { return e.alloc }

// Close stops the job pool. The world stays readable.
func (e *Experiment) Close() { e.pool.Close() }

// Step advances the scene by one dt and notifies metrics and observers.
func (e *Experiment) Step() (Frame, error) {
	cfg := e.cfg
	if err := e.world.Step(cfg.Dt, cfg.CollisionSteps, cfg.SubSteps, e.alloc, e.pool); err != nil {
		return Frame{}, err
	}
	e.step++
	e.t += cfg.Dt

	f := Frame{Step: e.step, Time: e.t, Bodies: e.world.Snapshot(), Stats: e.world.LastStepStats()}
	for _, m := range e.metrics {
		m.Observe(f.Bodies, e.world.Gravity(), f.Time)
	}
	for _, obs := range e.observers {
		obs.OnStep(f)
	}
	return f, nil
}

// Run steps the scene for its configured duration. Cancellation is seen
// between steps; the partial result is returned with the context error.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	steps := e.cfg.Steps()
	start := time.Now()
	movable := e.movable()

	result := &Result{
		Scene:   e.cfg.Scene,
		Columns: columns(movable),
		Times:   make([]float64, 0, steps+1),
		States:  make([][]float64, 0, steps+1),
		Metrics: make(map[string]float64),
	}
	for _, m := range e.metrics {
		m.Reset()
	}
	result.Times = append(result.Times, e.t)
	result.States = append(result.States, e.row(movable, e.world.Snapshot()))

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			e.finish(result, start)
			return result, ctx.Err()
		default:
		}

		f, err := e.Step()
		if err != nil {
			e.finish(result, start)
			return result, fmt.Errorf("step %d: %w", e.step+1, err)
		}
		result.Times = append(result.Times, f.Time)
		result.States = append(result.States, e.row(movable, f.Bodies))
	}
	e.finish(result, start)
	e.log.Info("run finished", "scene", result.Scene, "steps", result.Steps, "duration", result.Duration)
	return result, nil
}

func (e *Experiment) finish(r *Result, start time.Time) {
	r.Steps = e.step
	r.Stats = e.world.LastStepStats()
	r.Duration = time.Since(start)
	for k, v := range metrics.Collect(e.metrics) {
		r.Metrics[k] = v
	}
}

func (e *Experiment) movable() []Tracked {
	var out []Tracked
	for _, b := range e.bodies {
		if b.Motion != body.Static {
			out = append(out, b)
		}
	}
	return out
}

func columns(bodies []Tracked) []string {
	cols := make([]string, 0, 4*len(bodies))
	for _, b := range bodies {
		cols = append(cols, b.Name+".x", b.Name+".y", b.Name+".z", b.Name+".speed")
	}
	return cols
}

func (e *Experiment) row(bodies []Tracked, snap []physics.BodyState) []float64 {
	byID := make(map[body.BodyID]*physics.BodyState, len(snap))
	for i := range snap {
		byID[snap[i].ID] = &snap[i]
	}
	row := make([]float64, 0, 4*len(bodies))
	for _, b := range bodies {
		s, ok := byID[b.ID]
		if !ok {
			row = append(row, 0, 0, 0, 0)
			continue
		}
		row = append(row, s.Position[0], s.Position[1], s.Position[2], s.LinearVelocity.Len())
	}
	return row
}
