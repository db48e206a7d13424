package queue

import (
	"context"
	"errors"

	"github.com/itstheanurag/codejudge/internal/executor"
	"github.com/itstheanurag/codejudge/internal/metrics"
)

var ErrQueueFull = errors.New("job queue is full")

type Outcome struct {
	Result *executor.JobResult
	Err    error
}

type Job struct {
	Work *executor.Job
	// Done is buffered so a worker never blocks on a caller that went away.
	Done chan Outcome
}

type Manager struct {
	jobQueue chan *Job
}

func NewManager(capacity int) *Manager {
	return &Manager{
		jobQueue: make(chan *Job, capacity),
	}
}

// Submit enqueues without blocking.
func (m *Manager) Submit(job *Job) error {
	select {
	case m.jobQueue <- job:
		m.UpdateQueueMetric()
		return nil
	default:
		return ErrQueueFull
	}
}

func (m *Manager) NextJob() <-chan *Job {
	return m.jobQueue
}

func (m *Manager) UpdateQueueMetric() {
	metrics.QueueDepth.Set(float64(len(m.jobQueue)))
}

// Do enqueues work and waits for its outcome. Cancelling ctx only stops the
// wait; a job already handed to a worker still runs to completion.
func (m *Manager) Do(ctx context.Context, work *executor.Job) (*executor.JobResult, error) {
	job := &Job{Work: work, Done: make(chan Outcome, 1)}
	if err := m.Submit(job); err != nil {
		return nil, err
	}

	select {
	case out := <-job.Done:
		return out.Result, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
