package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrSchedulerSaturated indicates the job or barrier capacity is exhausted.
	ErrSchedulerSaturated = errors.New("jobs: scheduler saturated")

	// ErrPoolClosed indicates work was submitted after Close.
	ErrPoolClosed = errors.New("jobs: pool closed")
)

// JobPanic carries a panic recovered from a job.
type JobPanic struct {
	Value any
	Stack []byte
}

func (p *JobPanic) Error() string {
	return fmt.Sprintf("jobs: job panicked: %v", p.Value)
}
