package executor

import (
	"time"

	"github.com/itstheanurag/codejudge/internal/sandbox"
)

type SourceFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// Job is one request's full compile and batch-run lifecycle.
type Job struct {
	ID             string
	Language       string
	Files          []SourceFile
	Inputs         []string
	CompileTimeout time.Duration
	RunTimeout     time.Duration
}

// StageResult is the outcome of one compile or run invocation.
type StageResult struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Output  string `json:"output"`
	Code    int    `json:"code"`
	Signal  string `json:"signal,omitempty"`
	Message string `json:"message,omitempty"`
	TimeMs  int64  `json:"time_ms"`
}

func (s StageResult) TimedOut() bool {
	return s.Code == sandbox.TimeoutExitCode && s.Stderr == sandbox.TimeoutMessage
}

// JobResult holds one run per input, in input order. Compile is nil for
// languages without a compile phase; Runs is empty when compilation failed.
type JobResult struct {
	Language string
	Compile  *StageResult
	Runs     []StageResult
}

func (r *JobResult) CompileFailed() bool {
	return r.Compile != nil && r.Compile.Code != 0
}

func stageFrom(res *sandbox.Result) StageResult {
	return StageResult{
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
		Output:  res.Stdout + res.Stderr,
		Code:    res.ExitCode,
		Signal:  res.Signal,
		Message: res.Message,
		TimeMs:  res.TimeMs,
	}
}
