package jobs

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"
)

// Job is a unit of work run on a pool worker.
type Job func()

type job struct {
	fn   Job
	done chan struct{}
	err  *JobPanic
}

// Handle refers to a scheduled job.
type Handle struct {
	j *job
}

// Done is closed once the job has finished.
func (h Handle) Done() <-chan struct{} { return h.j.done }

func (h Handle) IsDone() bool {
	select {
	case <-h.j.done:
		return true
	default:
		return false
	}
}

type Option func(*Pool)

func WithLogger(l logr.Logger) Option {
	return func(p *Pool) { p.log = l }
}

type Pool struct {
	queue        chan *job
	jobSlots     *semaphore.Weighted
	barrierSlots *semaphore.Weighted
	maxJobs      int
	maxBarriers  int
	threads      int
	outstanding  atomic.Int64
	completed    atomic.Uint64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	log    logr.Logger
}

// NewPool starts threads workers; threads <= 0 uses one per CPU.
func NewPool(maxJobs, maxBarriers uint, threads int, opts ...Option) *Pool {
	if maxJobs == 0 {
		maxJobs = 1
	}
	if maxBarriers == 0 {
		maxBarriers = 1
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	p := &Pool{
		queue:        make(chan *job, maxJobs),
		jobSlots:     semaphore.NewWeighted(int64(maxJobs)),
		barrierSlots: semaphore.NewWeighted(int64(maxBarriers)),
		maxJobs:      int(maxJobs),
		maxBarriers:  int(maxBarriers),
		threads:      threads,
		log:          logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(threads)
	for i := 0; i < threads; i++ {
		go p.worker(i)
	}
	p.log.V(1).Info("job pool started", "threads", threads, "maxJobs", maxJobs, "maxBarriers", maxBarriers)
	return p
}

func (p *Pool) Threads() int     { return p.threads }
func (p *Pool) MaxJobs() int     { return p.maxJobs }
func (p *Pool) MaxBarriers() int { return p.maxBarriers }

// Outstanding is the number of scheduled jobs that have not finished.
func (p *Pool) Outstanding() int { return int(p.outstanding.Load()) }

func (p *Pool) Completed() uint64 { return p.completed.Load() }

// Schedule queues fn for the next idle worker. It never blocks.
func (p *Pool) Schedule(fn Job) (Handle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return Handle{}, ErrPoolClosed
	}
	if !p.jobSlots.TryAcquire(1) {
		return Handle{}, fmt.Errorf("%w: %d jobs outstanding", ErrSchedulerSaturated, p.maxJobs)
	}
	j := &job{fn: fn, done: make(chan struct{})}
	p.outstanding.Add(1)
	// a slot is held for every queued job so the buffered send cannot block
	p.queue <- j
	return Handle{j: j}, nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(id, j)
	}
}

func (p *Pool) run(id int, j *job) {
	defer func() {
		if r := recover(); r != nil {
			j.err = &JobPanic{Value: r, Stack: debug.Stack()}
			p.log.Error(j.err, "job panicked", "worker", id)
		}
		p.outstanding.Add(-1)
		p.completed.Add(1)
		p.jobSlots.Release(1)
		close(j.done)
	}()
	j.fn()
}

// Close stops accepting work, lets queued jobs finish and stops the workers.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
	p.log.V(1).Info("job pool stopped", "completed", p.completed.Load())
}
