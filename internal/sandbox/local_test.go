package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLocal(t *testing.T, r *Local, command, stdin string, timeout time.Duration) *Result {
	t.Helper()
	res, err := r.Run(context.Background(), Invocation{
		Command: command,
		Dir:     t.TempDir(),
		Timeout: timeout,
		Stdin:   stdin,
	})
	require.NoError(t, err)
	return res
}

func TestLocalCapturesStreams(t *testing.T) {
	r := NewLocal("", 0, nil)

	res := runLocal(t, r, "echo out; echo err 1>&2", "", time.Second)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestLocalWritesStdin(t *testing.T) {
	r := NewLocal("", 0, nil)

	res := runLocal(t, r, "cat", "hello\nworld", time.Second)
	assert.Equal(t, "hello\nworld", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestLocalEmptyStdinDoesNotBlock(t *testing.T) {
	r := NewLocal("", 0, nil)

	res := runLocal(t, r, "cat; echo done", "", 2*time.Second)
	assert.Equal(t, "done\n", res.Stdout)
	assert.False(t, res.TimedOut)
}

func TestLocalReportsExitCode(t *testing.T) {
	r := NewLocal("", 0, nil)

	res := runLocal(t, r, "exit 3", "", time.Second)
	assert.Equal(t, 3, res.ExitCode)
	assert.Empty(t, res.Signal)
}

func TestLocalRunsInWorkingDirectory(t *testing.T) {
	r := NewLocal("", 0, nil)
	dir := t.TempDir()

	res, err := r.Run(context.Background(), Invocation{Command: "pwd", Dir: dir, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, dir, strings.TrimSpace(res.Stdout))
}

func TestLocalTimeoutSentinel(t *testing.T) {
	r := NewLocal("", 0, nil)

	start := time.Now()
	res := runLocal(t, r, "sleep 5", "", 200*time.Millisecond)
	assert.Less(t, time.Since(start), 3*time.Second)

	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	assert.Equal(t, TimeoutMessage, res.Stderr)
	assert.GreaterOrEqual(t, res.TimeMs, int64(200))
}

func TestLocalTimeoutKillsProcessGroup(t *testing.T) {
	r := NewLocal("", 0, nil)

	start := time.Now()
	res := runLocal(t, r, "sleep 5 & sleep 5; wait", "", 200*time.Millisecond)
	assert.True(t, res.TimedOut)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestLocalSignalFallsBackToZero(t *testing.T) {
	r := NewLocal("", 0, nil)

	res := runLocal(t, r, "kill -9 $$", "", time.Second)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "SIGKILL", res.Signal)
	assert.False(t, res.TimedOut)
}

func TestLocalOutputCeiling(t *testing.T) {
	r := NewLocal("", 64, nil)

	res := runLocal(t, r, "while true; do echo aaaaaaaaaaaaaaaa; done", "", 5*time.Second)
	assert.False(t, res.TimedOut)
	assert.Len(t, res.Stdout, 64)
	assert.Equal(t, "stdout maxBuffer length exceeded", res.Message)
}

func TestLocalCancelledParentIsAnError(t *testing.T) {
	r := NewLocal("", 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, Invocation{Command: "true", Dir: t.TempDir(), Timeout: time.Second})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalSpawnFailureIsAnError(t *testing.T) {
	r := NewLocal("/nonexistent/shell", 0, nil)

	_, err := r.Run(context.Background(), Invocation{Command: "true", Dir: t.TempDir(), Timeout: time.Second})
	assert.Error(t, err)
}
