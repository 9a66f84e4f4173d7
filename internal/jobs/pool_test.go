package jobs

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestScheduleAndWait(t *testing.T) {
	p := NewPool(64, 4, 4)
	defer p.Close()

	var count atomic.Int32
	b, err := p.NewBarrier()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 32; i++ {
		h, err := p.Schedule(func() { count.Add(1) })
		if err != nil {
			t.Fatalf("schedule %d failed: %v", i, err)
		}
		b.Add(h)
	}
	if err := p.Wait(b); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if got := count.Load(); got != 32 {
		t.Errorf("expected 32 jobs to run, got %d", got)
	}
	if p.Outstanding() != 0 {
		t.Errorf("expected no outstanding jobs, got %d", p.Outstanding())
	}
}

func TestScheduleSaturates(t *testing.T) {
	p := NewPool(2, 4, 1)
	defer p.Close()

	gate := make(chan struct{})
	b, _ := p.NewBarrier()
	for i := 0; i < 2; i++ {
		h, err := p.Schedule(func() { <-gate })
		if err != nil {
			t.Fatalf("schedule %d failed: %v", i, err)
		}
		b.Add(h)
	}

	if _, err := p.Schedule(func() {}); !errors.Is(err, ErrSchedulerSaturated) {
		t.Errorf("expected ErrSchedulerSaturated, got %v", err)
	}

	close(gate)
	if err := p.Wait(b); err != nil {
		t.Fatal(err)
	}

	h, err := p.Schedule(func() {})
	if err != nil {
		t.Fatalf("schedule after drain failed: %v", err)
	}
	<-h.Done()
	if !h.IsDone() {
		t.Error("handle should report done")
	}
}

func TestBarrierCapacity(t *testing.T) {
	p := NewPool(4, 1, 1)
	defer p.Close()

	b, err := p.NewBarrier()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.NewBarrier(); !errors.Is(err, ErrSchedulerSaturated) {
		t.Errorf("expected ErrSchedulerSaturated, got %v", err)
	}
	if err := p.Wait(b); err != nil {
		t.Fatal(err)
	}
	b, err = p.NewBarrier()
	if err != nil {
		t.Fatalf("barrier slot not released: %v", err)
	}
	p.Wait(b)
}

func TestWaitTwice(t *testing.T) {
	p := NewPool(4, 1, 1)
	defer p.Close()

	b, err := p.NewBarrier()
	if err != nil {
		t.Fatal(err)
	}
	h, err := p.Schedule(func() {})
	if err != nil {
		t.Fatal(err)
	}
	b.Add(h)
	if err := p.Wait(b); err != nil {
		t.Fatal(err)
	}
	if err := p.Wait(b); err != nil {
		t.Errorf("second wait: %v", err)
	}

	// exactly one slot came back
	b, err = p.NewBarrier()
	if err != nil {
		t.Fatalf("barrier slot not released: %v", err)
	}
	if _, err := p.NewBarrier(); !errors.Is(err, ErrSchedulerSaturated) {
		t.Errorf("expected ErrSchedulerSaturated, got %v", err)
	}
	p.Wait(b)
}

func TestFanOut(t *testing.T) {
	p := NewPool(64, 2, 4)
	defer p.Close()

	var count atomic.Int32
	b, _ := p.NewBarrier()
	parent, err := p.Schedule(func() {
		count.Add(1)
		for i := 0; i < 8; i++ {
			child, err := p.Schedule(func() { count.Add(1) })
			if err != nil {
				return
			}
			b.Add(child)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	b.Add(parent)

	if err := p.Wait(b); err != nil {
		t.Fatal(err)
	}
	if got := count.Load(); got != 9 {
		t.Errorf("expected parent and 8 children, got %d", got)
	}
}

func TestJobPanicIsReported(t *testing.T) {
	p := NewPool(8, 2, 2)
	defer p.Close()

	h, _ := p.Schedule(func() { panic("boom") })
	b, _ := p.NewBarrier(h)
	err := p.Wait(b)

	var jp *JobPanic
	if !errors.As(err, &jp) {
		t.Fatalf("expected JobPanic, got %v", err)
	}
	if jp.Value != "boom" {
		t.Errorf("panic value = %v", jp.Value)
	}

	var ran atomic.Bool
	h, err = p.Schedule(func() { ran.Store(true) })
	if err != nil {
		t.Fatal(err)
	}
	<-h.Done()
	if !ran.Load() {
		t.Error("pool should keep working after a panic")
	}
}

func TestScheduleAfterClose(t *testing.T) {
	p := NewPool(4, 1, 1)
	p.Close()
	p.Close()
	if _, err := p.Schedule(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestParallelForCoversRange(t *testing.T) {
	p := NewPool(64, 4, 4)
	defer p.Close()

	tests := []struct {
		n, minChunk int
	}{
		{0, 1},
		{1, 1},
		{7, 2},
		{100, 8},
		{1000, 1},
	}
	for _, tt := range tests {
		hits := make([]int32, tt.n)
		err := p.ParallelFor(tt.n, tt.minChunk, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		if err != nil {
			t.Fatalf("n=%d: %v", tt.n, err)
		}
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("n=%d: index %d visited %d times", tt.n, i, h)
			}
		}
	}
}

func TestParallelForSaturated(t *testing.T) {
	p := NewPool(1, 4, 4)
	defer p.Close()

	gate := make(chan struct{})
	blocker, _ := p.Schedule(func() { <-gate })

	err := p.ParallelFor(100, 1, func(start, end int) {})
	if !errors.Is(err, ErrSchedulerSaturated) {
		t.Errorf("expected ErrSchedulerSaturated, got %v", err)
	}
	close(gate)
	<-blocker.Done()
}

func BenchmarkScheduleWait(b *testing.B) {
	p := NewPool(1024, 8, 0)
	defer p.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bar, _ := p.NewBarrier()
		for j := 0; j < 64; j++ {
			h, _ := p.Schedule(func() {})
			bar.Add(h)
		}
		p.Wait(bar)
	}
}
