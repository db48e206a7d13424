package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/itstheanurag/codejudge/internal/languages"
	"github.com/itstheanurag/codejudge/internal/metrics"
	"github.com/itstheanurag/codejudge/internal/sandbox"
	"github.com/rs/zerolog"
)

// Batch compiles a workspace once and runs the artifact once per input.
type Batch struct {
	runner sandbox.Runner
	logger *zerolog.Logger
}

func NewBatch(runner sandbox.Runner, logger *zerolog.Logger) *Batch {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Batch{runner: runner, logger: logger}
}

// Execute writes files into dir, compiles when the language needs it and
// then runs every input sequentially. Child failures and timeouts come back
// as results; only engine faults are returned as errors.
func (b *Batch) Execute(
	ctx context.Context,
	h languages.Handler,
	dir string,
	files []SourceFile,
	inputs []string,
	compileTimeout, runTimeout time.Duration,
) (*JobResult, error) {
	names, err := writeFiles(h, dir, files)
	if err != nil {
		return nil, err
	}
	entry := languages.ResolveEntry(h, names)
	image := h.Config().Image
	lang := h.Name()

	result := &JobResult{Language: lang, Runs: []StageResult{}}

	compileCmd, compiled, err := h.CompileCommand(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to build compile command: %w", err)
	}
	if compiled {
		res, err := b.runner.Run(ctx, sandbox.Invocation{
			Command: compileCmd,
			Dir:     dir,
			Timeout: compileTimeout,
			Image:   image,
		})
		if err != nil {
			return nil, fmt.Errorf("compile stage failed: %w", err)
		}
		observe(lang, "compile", res)

		stage := stageFrom(res)
		result.Compile = &stage
		if stage.Code != 0 {
			b.logger.Debug().Str("language", lang).Int("code", stage.Code).Msg("compilation failed")
			return result, nil
		}
	}

	runCmd, err := h.RunCommand(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to build run command: %w", err)
	}

	result.Runs = make([]StageResult, 0, len(inputs))
	for i, input := range inputs {
		res, err := b.runner.Run(ctx, sandbox.Invocation{
			Command: runCmd,
			Dir:     dir,
			Timeout: runTimeout,
			Stdin:   input,
			Image:   image,
		})
		if err != nil {
			return nil, fmt.Errorf("run stage %d failed: %w", i, err)
		}
		observe(lang, "run", res)
		result.Runs = append(result.Runs, stageFrom(res))
	}

	return result, nil
}

// writeFiles writes sources in submission order, so the last file with a
// given name wins. It returns the resolved names in the same order.
func writeFiles(h languages.Handler, dir string, files []SourceFile) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		name := f.Name
		if name == "" {
			name = h.DefaultFileName()
		}
		if err := ValidateFileName(name); err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(f.Content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func observe(lang, phase string, res *sandbox.Result) {
	metrics.StageDuration.WithLabelValues(lang, phase).Observe(float64(res.TimeMs))
	if res.TimedOut {
		metrics.TimeoutsTotal.WithLabelValues(lang, phase).Inc()
	}
}
