package jobs

import (
	"errors"
	"fmt"
	"sync"
)

// Barrier is a single-use join point over a growing set of jobs.
type Barrier struct {
	pool     *Pool
	mu       sync.Mutex
	jobs     []*job
	released bool
}

// NewBarrier reserves a barrier slot and attaches the given jobs.
func (p *Pool) NewBarrier(handles ...Handle) (*Barrier, error) {
	if !p.barrierSlots.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %d barriers in use", ErrSchedulerSaturated, p.maxBarriers)
	}
	b := &Barrier{pool: p}
	b.Add(handles...)
	return b, nil
}

// Add attaches more jobs. A job may add the jobs it spawns while it is
// still running; adding after Wait returned has no effect.
func (b *Barrier) Add(handles ...Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	for _, h := range handles {
		if h.j != nil {
			b.jobs = append(b.jobs, h.j)
		}
	}
}

// Len is the number of jobs attached so far.
func (b *Barrier) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// Wait blocks until every job added to b has completed, then frees the
// barrier slot. Recovered job panics are returned joined together. Waiting
// on a barrier that was already waited on returns nil at once.
func (p *Pool) Wait(b *Barrier) error {
	var errs []error
	first := false
	for i := 0; ; i++ {
		b.mu.Lock()
		if i >= len(b.jobs) {
			first = !b.released
			b.released = true
			b.jobs = nil
			b.mu.Unlock()
			break
		}
		j := b.jobs[i]
		b.mu.Unlock()

		<-j.done
		if j.err != nil {
			errs = append(errs, j.err)
		}
	}
	if first {
		p.barrierSlots.Release(1)
	}
	return errors.Join(errs...)
}

// ParallelFor splits [0, n) into chunks of at least minChunk items, runs
// them on the pool and waits for all of them. If the pool saturates part
// way, the chunks already scheduled still complete before the error is
// returned.
func (p *Pool) ParallelFor(n, minChunk int, fn func(start, end int)) error {
	if n <= 0 {
		return nil
	}
	if minChunk < 1 {
		minChunk = 1
	}
	chunks := p.threads
	if n/minChunk < chunks {
		chunks = n / minChunk
	}
	if chunks < 1 {
		chunks = 1
	}
	size := (n + chunks - 1) / chunks

	b, err := p.NewBarrier()
	if err != nil {
		return err
	}
	var schedErr error
	for start := 0; start < n; start += size {
		s, e := start, min(start+size, n)
		h, err := p.Schedule(func() { fn(s, e) })
		if err != nil {
			schedErr = err
			break
		}
		b.Add(h)
	}
	waitErr := p.Wait(b)
	if schedErr != nil {
		return schedErr
	}
	return waitErr
}
