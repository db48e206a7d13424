package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/itstheanurag/codejudge/internal/languages"
	"github.com/itstheanurag/codejudge/internal/sandbox"
	"github.com/itstheanurag/codejudge/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, runner sandbox.Runner) (*Executor, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "scratch")
	return NewExecutor(
		languages.NewRegistry(),
		workspace.NewManager(root, nil),
		NewBatch(runner, nil),
		nil,
	), root
}

func assertScratchEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecuteUnsupportedLanguageCreatesNoWorkspace(t *testing.T) {
	runner := &fakeRunner{}
	e, root := newTestExecutor(t, runner)

	_, err := e.Execute(context.Background(), &Job{ID: "j1", Language: "ruby"})
	assert.ErrorIs(t, err, languages.ErrUnsupportedLanguage)
	assert.NoDirExists(t, root)
	assert.Empty(t, runner.invocations)
}

func TestExecuteInvalidFileNameCreatesNoWorkspace(t *testing.T) {
	e, root := newTestExecutor(t, &fakeRunner{})

	_, err := e.Execute(context.Background(), &Job{
		Language: "python",
		Files:    []SourceFile{{Name: "dir/main.py"}},
	})
	assert.ErrorIs(t, err, ErrInvalidFileName)
	assert.NoDirExists(t, root)
}

func TestExecuteReleasesWorkspace(t *testing.T) {
	runner := &fakeRunner{script: echoStdin}
	e, root := newTestExecutor(t, runner)

	res, err := e.Execute(context.Background(), &Job{
		ID:         "j1",
		Language:   "PYTHON",
		Files:      []SourceFile{{Content: "print(input())"}},
		Inputs:     []string{"hi", "bye"},
		RunTimeout: time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "python", res.Language)
	require.Len(t, res.Runs, 2)
	assert.Equal(t, "hi\n", res.Runs[0].Stdout)
	assert.Equal(t, "bye\n", res.Runs[1].Stdout)
	assertScratchEmpty(t, root)
}

func TestExecuteReleasesWorkspaceOnEngineFault(t *testing.T) {
	boom := errors.New("daemon unavailable")
	e, root := newTestExecutor(t, &fakeRunner{errs: []error{boom}})

	_, err := e.Execute(context.Background(), &Job{Language: "cpp", Inputs: []string{"1"}})
	assert.ErrorIs(t, err, boom)
	assertScratchEmpty(t, root)
}

func TestExecuteDefaultsToSingleEmptyInput(t *testing.T) {
	runner := &fakeRunner{}
	e, _ := newTestExecutor(t, runner)

	res, err := e.Execute(context.Background(), &Job{Language: "js"})
	require.NoError(t, err)
	assert.Len(t, res.Runs, 1)
	require.Len(t, runner.invocations, 1)
	assert.Empty(t, runner.invocations[0].Stdin)
}

func TestExecuteJobsGetDistinctWorkspaces(t *testing.T) {
	runner := &fakeRunner{}
	e, root := newTestExecutor(t, runner)
	job := &Job{Language: "python", Files: []SourceFile{{Content: "print(1)"}}}

	_, err := e.Execute(context.Background(), job)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, runner.invocations, 2)
	assert.NotEqual(t, runner.invocations[0].Dir, runner.invocations[1].Dir)
	assertScratchEmpty(t, root)
}

func lookPath(t *testing.T, bin string) {
	t.Helper()
	if _, err := exec.LookPath(bin); err != nil {
		t.Skipf("%s not installed", bin)
	}
}

func TestExecutePythonEndToEnd(t *testing.T) {
	lookPath(t, "python3")
	e, root := newTestExecutor(t, sandbox.NewLocal("", 0, nil))

	res, err := e.Execute(context.Background(), &Job{
		Language:       "python",
		Files:          []SourceFile{{Content: "print(input())"}},
		Inputs:         []string{"hi", "bye"},
		CompileTimeout: 10 * time.Second,
		RunTimeout:     5 * time.Second,
	})
	require.NoError(t, err)

	assert.Nil(t, res.Compile)
	require.Len(t, res.Runs, 2)
	assert.Equal(t, "hi\n", res.Runs[0].Stdout)
	assert.Equal(t, 0, res.Runs[0].Code)
	assert.Equal(t, "bye\n", res.Runs[1].Stdout)
	assertScratchEmpty(t, root)
}

func TestExecuteJavaScriptTimeoutEndToEnd(t *testing.T) {
	lookPath(t, "node")
	e, root := newTestExecutor(t, sandbox.NewLocal("", 0, nil))

	res, err := e.Execute(context.Background(), &Job{
		Language:   "javascript",
		Files:      []SourceFile{{Content: "while(true){}"}},
		RunTimeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)

	require.Len(t, res.Runs, 1)
	assert.Equal(t, 124, res.Runs[0].Code)
	assert.Equal(t, "Time limit exceeded", res.Runs[0].Stderr)
	assertScratchEmpty(t, root)
}

func TestExecuteCppSyntaxErrorEndToEnd(t *testing.T) {
	lookPath(t, "g++")
	e, root := newTestExecutor(t, sandbox.NewLocal("", 0, nil))

	res, err := e.Execute(context.Background(), &Job{
		Language:       "cpp",
		Files:          []SourceFile{{Content: "int x = ;"}},
		CompileTimeout: 30 * time.Second,
		RunTimeout:     time.Second,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Compile)
	assert.NotEqual(t, 0, res.Compile.Code)
	assert.Empty(t, res.Runs)
	assertScratchEmpty(t, root)
}

func TestExecuteCppNonZeroExitEndToEnd(t *testing.T) {
	lookPath(t, "g++")
	e, root := newTestExecutor(t, sandbox.NewLocal("", 0, nil))

	res, err := e.Execute(context.Background(), &Job{
		Language:       "cpp",
		Files:          []SourceFile{{Name: "main.cpp", Content: "int main(){return 1;}"}},
		CompileTimeout: 30 * time.Second,
		RunTimeout:     2 * time.Second,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Compile)
	assert.Equal(t, 0, res.Compile.Code)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, 1, res.Runs[0].Code)
	assert.False(t, res.Runs[0].TimedOut())
	assertScratchEmpty(t, root)
}

func TestExecuteFillsZeroTimeouts(t *testing.T) {
	runner := &fakeRunner{}
	e, _ := newTestExecutor(t, runner)

	_, err := e.Execute(context.Background(), &Job{Language: "cpp"})
	require.NoError(t, err)

	require.Len(t, runner.invocations, 2)
	assert.Equal(t, DefaultCompileTimeout, runner.invocations[0].Timeout)
	assert.Equal(t, DefaultRunTimeout, runner.invocations[1].Timeout)
}
