package queue

import (
	"context"
	"testing"
	"time"

	"github.com/itstheanurag/codejudge/internal/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRejectsWhenFull(t *testing.T) {
	m := NewManager(1)

	require.NoError(t, m.Submit(&Job{Work: &executor.Job{ID: "a"}}))
	assert.ErrorIs(t, m.Submit(&Job{Work: &executor.Job{ID: "b"}}), ErrQueueFull)

	job := <-m.NextJob()
	assert.Equal(t, "a", job.Work.ID)
}

func TestDoReturnsOutcome(t *testing.T) {
	m := NewManager(1)
	want := &executor.JobResult{Language: "python"}

	go func() {
		job := <-m.NextJob()
		job.Done <- Outcome{Result: want}
	}()

	got, err := m.Do(context.Background(), &executor.Job{ID: "a"})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestDoStopsWaitingOnCancel(t *testing.T) {
	m := NewManager(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := m.Do(ctx, &executor.Job{ID: "a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the job stays queued for a worker; its outcome slot must not block
	job := <-m.NextJob()
	job.Done <- Outcome{}
}
