// Package jobs is the fixed-size worker pool that drives the parallel
// phases of a physics step.
//
// Work is submitted as a [Job] and joined with a [Barrier]:
//
//	pool := jobs.NewPool(1024, 8, runtime.NumCPU())
//	defer pool.Close()
//
//	b, _ := pool.NewBarrier()
//	for i := range chunks {
//	    h, err := pool.Schedule(func() { work(i) })
//	    if err != nil {
//	        break
//	    }
//	    b.Add(h)
//	}
//	err := pool.Wait(b)
//
// # Capacity
//
// The number of outstanding jobs and live barriers is bounded. Exceeding
// either bound fails immediately with [ErrSchedulerSaturated] instead of
// queueing, which gives callers a hard backpressure signal.
//
// # Deadlock
//
// Only the orchestrating goroutine may call [Pool.Wait]. A job that waits
// on a barrier occupies a worker and can starve the jobs it waits for. Jobs
// that fan out must Add their children to the barrier before returning.
package jobs
