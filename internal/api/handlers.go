package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/itstheanurag/codejudge/internal/executor"
	"github.com/itstheanurag/codejudge/internal/languages"
	"github.com/itstheanurag/codejudge/internal/queue"
	"github.com/rs/zerolog"
)

type ExecutionRequest struct {
	Language       string                `json:"language"`
	Version        string                `json:"version,omitempty"` // accepted for Piston clients, ignored
	Files          []executor.SourceFile `json:"files"`
	Stdin          string                `json:"stdin"`
	Inputs         []string              `json:"inputs"`
	CompileTimeout *int                  `json:"compile_timeout"` // in milliseconds
	RunTimeout     *int                  `json:"run_timeout"`     // in milliseconds
}

type ExecutionResponse struct {
	Language string                 `json:"language"`
	Compile  *executor.StageResult  `json:"compile,omitempty"`
	Run      *executor.StageResult  `json:"run,omitempty"`
	Results  []executor.StageResult `json:"results"`
}

type Runtime struct {
	Language    string   `json:"language"`
	Aliases     []string `json:"aliases"`
	Kind        string   `json:"kind"`
	DefaultFile string   `json:"default_file"`
	Compiled    bool     `json:"compiled"`
	Image       string   `json:"image,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// JobRunner hands a job to the engine and waits for its result.
type JobRunner interface {
	Do(ctx context.Context, job *executor.Job) (*executor.JobResult, error)
}

// Validator rejects jobs that must never reach a workspace.
type Validator interface {
	Validate(job *executor.Job) (languages.Handler, error)
}

type Defaults struct {
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	MaxBodyBytes   int64
	// MaxInputs and MaxJobTime bound a batch so its response can still be
	// written. Zero disables the check.
	MaxInputs  int
	MaxJobTime time.Duration
}

type Handler struct {
	runner    JobRunner
	validator Validator
	registry  *languages.Registry
	defaults  Defaults
	logger    *zerolog.Logger
}

func NewHandler(runner JobRunner, validator Validator, registry *languages.Registry, defaults Defaults, logger *zerolog.Logger) *Handler {
	return &Handler{
		runner:    runner,
		validator: validator,
		registry:  registry,
		defaults:  defaults,
		logger:    logger,
	}
}

func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	if h.defaults.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.defaults.MaxBodyBytes)
	}

	var req ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, err := h.buildJob(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.validator.Validate(job); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.runner.Do(r.Context(), job)
	if err != nil {
		switch {
		case errors.Is(err, languages.ErrUnsupportedLanguage), errors.Is(err, executor.ErrInvalidFileName):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, queue.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
			h.logger.Info().Str("job_id", job.ID).Msg("client went away before the job finished")
		default:
			h.logger.Error().Err(err).Str("job_id", job.ID).Msg("execution failed")
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, newExecutionResponse(result))
}

func (h *Handler) Runtimes(w http.ResponseWriter, r *http.Request) {
	langs := h.registry.List()
	out := make([]Runtime, 0, len(langs))
	for _, l := range langs {
		_, compiled, _ := l.Handler.CompileCommand(l.Handler.DefaultFileName())
		aliases := l.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		out = append(out, Runtime{
			Language:    l.Handler.Name(),
			Aliases:     aliases,
			Kind:        string(l.Handler.Kind()),
			DefaultFile: l.Handler.DefaultFileName(),
			Compiled:    compiled,
			Image:       l.Handler.Config().Image,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) buildJob(req *ExecutionRequest) (*executor.Job, error) {
	compileTimeout, err := timeoutOrDefault(req.CompileTimeout, h.defaults.CompileTimeout, "compile_timeout")
	if err != nil {
		return nil, err
	}
	runTimeout, err := timeoutOrDefault(req.RunTimeout, h.defaults.RunTimeout, "run_timeout")
	if err != nil {
		return nil, err
	}

	inputs := req.Inputs
	if len(inputs) == 0 {
		inputs = []string{req.Stdin}
	}
	if h.defaults.MaxInputs > 0 && len(inputs) > h.defaults.MaxInputs {
		return nil, fmt.Errorf("at most %d inputs are allowed, got %d", h.defaults.MaxInputs, len(inputs))
	}
	worst := compileTimeout + time.Duration(len(inputs))*runTimeout
	if h.defaults.MaxJobTime > 0 && worst > h.defaults.MaxJobTime {
		return nil, fmt.Errorf("compile_timeout plus run_timeout for %d inputs exceeds %s", len(inputs), h.defaults.MaxJobTime)
	}

	return &executor.Job{
		ID:             uuid.NewString(),
		Language:       req.Language,
		Files:          req.Files,
		Inputs:         inputs,
		CompileTimeout: compileTimeout,
		RunTimeout:     runTimeout,
	}, nil
}

func timeoutOrDefault(ms *int, def time.Duration, field string) (time.Duration, error) {
	if ms == nil || *ms == 0 {
		return def, nil
	}
	if *ms < 0 {
		return 0, errors.New(field + " must be a positive number of milliseconds")
	}
	return time.Duration(*ms) * time.Millisecond, nil
}

func newExecutionResponse(res *executor.JobResult) *ExecutionResponse {
	resp := &ExecutionResponse{
		Language: res.Language,
		Compile:  res.Compile,
		Results:  res.Runs,
	}
	if resp.Results == nil {
		resp.Results = []executor.StageResult{}
	}
	if len(resp.Results) > 0 {
		first := resp.Results[0]
		resp.Run = &first
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}
