package sandbox

import (
	"context"
	"errors"
	"time"
)

const (
	// TimeoutExitCode and TimeoutMessage mark a process killed at its deadline.
	TimeoutExitCode = 124
	TimeoutMessage  = "Time limit exceeded"

	// DefaultMaxOutputBytes caps each captured stream.
	DefaultMaxOutputBytes = 10 * 1024 * 1024
)

var ErrOutputLimit = errors.New("maxBuffer length exceeded")

// Result is what one process invocation produced. ExitCode is 0 when the
// real code could not be obtained (e.g. killed by a signal), so a zero code
// alone does not mean success.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Signal   string
	Message  string
	TimeMs   int64
	TimedOut bool
}

// Runner executes a single shell command. Failures of the child are reported
// in Result; the returned error is reserved for engine faults such as a spawn
// failure or a cancelled parent context.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

type Invocation struct {
	Command string
	Dir     string
	Timeout time.Duration
	Stdin   string
	// Image is only used by container backends.
	Image string
}

// TimeoutResult builds the sentinel result for a deadline expiry.
func TimeoutResult(stdout string, elapsed time.Duration) *Result {
	return &Result{
		Stdout:   stdout,
		Stderr:   TimeoutMessage,
		ExitCode: TimeoutExitCode,
		Signal:   "SIGKILL",
		Message:  TimeoutMessage,
		TimeMs:   elapsed.Milliseconds(),
		TimedOut: true,
	}
}
