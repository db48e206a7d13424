package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const waitDelay = 500 * time.Millisecond

// Local runs commands as child processes of the server, rooted in the job's
// workspace. Isolation is limited to the working directory and the deadline.
type Local struct {
	shell          string
	maxOutputBytes int
	logger         *zerolog.Logger
}

func NewLocal(shell string, maxOutputBytes int, logger *zerolog.Logger) *Local {
	if shell == "" {
		shell = "/bin/sh"
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Local{shell: shell, maxOutputBytes: maxOutputBytes, logger: logger}
}

func (l *Local) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run aborted: %w", err)
	}

	deadlineCtx, cancelDeadline := context.WithTimeout(ctx, inv.Timeout)
	defer cancelDeadline()
	killCtx, kill := context.WithCancel(deadlineCtx)
	defer kill()

	cmd := exec.CommandContext(killCtx, l.shell, "-c", inv.Command)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	stdout := newCappedBuffer(l.maxOutputBytes, kill)
	stderr := newCappedBuffer(l.maxOutputBytes, kill)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// A nil Stdin is /dev/null, so the child sees EOF immediately.
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", l.shell, err)
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)
	reapProcessGroup(cmd)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run aborted: %w", err)
	}

	ps := cmd.ProcessState
	if errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) && (ps == nil || !ps.Exited()) {
		l.logger.Debug().
			Str("dir", inv.Dir).
			Int64("time_ms", elapsed.Milliseconds()).
			Msg("process killed at deadline")
		return TimeoutResult(stdout.String(), elapsed), nil
	}

	if ps == nil {
		return nil, fmt.Errorf("process did not report a state: %w", waitErr)
	}

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: ps.ExitCode(),
		Signal:   signalName(ps),
		TimeMs:   elapsed.Milliseconds(),
	}
	// -1 means the code is unknown (signalled); report 0 and keep the signal.
	if res.ExitCode < 0 {
		res.ExitCode = 0
	}

	switch {
	case stdout.Overflowed():
		res.Message = "stdout " + ErrOutputLimit.Error()
	case stderr.Overflowed():
		res.Message = "stderr " + ErrOutputLimit.Error()
	}

	if waitErr != nil && res.Message == "" {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
			res.Message = waitErr.Error()
		}
	}

	return res, nil
}
