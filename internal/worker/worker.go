package worker

import (
	"context"
	"fmt"

	"github.com/itstheanurag/codejudge/internal/executor"
	"github.com/itstheanurag/codejudge/internal/metrics"
	"github.com/itstheanurag/codejudge/internal/queue"
	"github.com/rs/zerolog"
)

// JobExecutor is the part of executor.Executor a worker needs.
type JobExecutor interface {
	Execute(ctx context.Context, job *executor.Job) (*executor.JobResult, error)
}

type Worker struct {
	id       int
	executor JobExecutor
	manager  *queue.Manager
	logger   *zerolog.Logger
}

func NewWorker(id int, exec JobExecutor, manager *queue.Manager, logger *zerolog.Logger) *Worker {
	return &Worker{
		id:       id,
		executor: exec,
		manager:  manager,
		logger:   logger,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Int("worker_id", w.id).Msg("worker started")
	for {
		select {
		case job := <-w.manager.NextJob():
			w.manager.UpdateQueueMetric()
			metrics.ActiveWorkers.Inc()
			// Shutdown stops the loop, not a job that already started.
			w.processJob(context.WithoutCancel(ctx), job)
			metrics.ActiveWorkers.Dec()
		case <-ctx.Done():
			w.logger.Info().Int("worker_id", w.id).Msg("worker stopping")
			return
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	w.logger.Debug().Int("worker_id", w.id).Str("job_id", job.Work.ID).Msg("processing job")

	var out queue.Outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error().Int("worker_id", w.id).Str("job_id", job.Work.ID).Interface("panic", r).Msg("job panicked")
				out = queue.Outcome{Err: fmt.Errorf("job panicked: %v", r)}
			}
		}()
		res, err := w.executor.Execute(ctx, job.Work)
		out = queue.Outcome{Result: res, Err: err}
	}()

	job.Done <- out
}
