package executor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/itstheanurag/codejudge/internal/languages"
	"github.com/itstheanurag/codejudge/internal/metrics"
	"github.com/itstheanurag/codejudge/internal/workspace"
	"github.com/rs/zerolog"
)

const (
	DefaultCompileTimeout = 10 * time.Second
	DefaultRunTimeout     = 3 * time.Second
)

var (
	ErrInvalidFileName = errors.New("invalid file name")

	fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// ValidateFileName accepts a single path element made of safe characters.
func ValidateFileName(name string) error {
	if name == "." || name == ".." || !fileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}

type Executor struct {
	registry   *languages.Registry
	workspaces *workspace.Manager
	batch      *Batch
	logger     *zerolog.Logger
}

func NewExecutor(registry *languages.Registry, workspaces *workspace.Manager, batch *Batch, logger *zerolog.Logger) *Executor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Executor{
		registry:   registry,
		workspaces: workspaces,
		batch:      batch,
		logger:     logger,
	}
}

// Validate checks everything that can be rejected without touching the
// filesystem and returns the language handler.
func (e *Executor) Validate(job *Job) (languages.Handler, error) {
	h, err := e.registry.Resolve(job.Language)
	if err != nil {
		return nil, err
	}
	for _, f := range job.Files {
		if f.Name == "" {
			continue
		}
		if err := ValidateFileName(f.Name); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Execute runs a whole job inside its own workspace. The workspace is
// released on every exit path; validation errors happen before it exists.
func (e *Executor) Execute(ctx context.Context, job *Job) (*JobResult, error) {
	h, err := e.Validate(job)
	if err != nil {
		return nil, err
	}

	inputs := job.Inputs
	if len(inputs) == 0 {
		inputs = []string{""}
	}
	compileTimeout, runTimeout := job.CompileTimeout, job.RunTimeout
	if compileTimeout <= 0 {
		compileTimeout = DefaultCompileTimeout
	}
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}

	log := e.logger.With().Str("job_id", job.ID).Str("language", h.Name()).Logger()
	start := time.Now()

	var result *JobResult
	err = e.workspaces.With(ctx, func(ctx context.Context, ws *workspace.Workspace) error {
		log.Debug().Str("workspace", ws.Dir).Int("inputs", len(inputs)).Msg("workspace allocated")
		var err error
		result, err = e.batch.Execute(ctx, h, ws.Dir, job.Files, inputs, compileTimeout, runTimeout)
		return err
	})
	duration := time.Since(start)

	if err != nil {
		metrics.JobsTotal.WithLabelValues(h.Name(), "error").Inc()
		log.Error().Err(err).Msg("job failed")
		return nil, err
	}

	status := "ok"
	if result.CompileFailed() {
		status = "compile_error"
	}
	metrics.JobsTotal.WithLabelValues(h.Name(), status).Inc()
	metrics.StageDuration.WithLabelValues(h.Name(), "total").Observe(float64(duration.Milliseconds()))

	log.Info().
		Str("status", status).
		Int("runs", len(result.Runs)).
		Dur("duration", duration).
		Msg("job finished")
	return result, nil
}
