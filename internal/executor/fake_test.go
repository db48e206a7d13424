package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/itstheanurag/codejudge/internal/sandbox"
)

// fakeRunner records every invocation and answers with scripted results.
// When script is set it decides the result from the invocation.
type fakeRunner struct {
	mu          sync.Mutex
	invocations []sandbox.Invocation
	dirFiles    [][]string
	results     []*sandbox.Result
	errs        []error
	script      func(inv sandbox.Invocation) *sandbox.Result
}

func (f *fakeRunner) Run(ctx context.Context, inv sandbox.Invocation) (*sandbox.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.invocations = append(f.invocations, inv)
	f.dirFiles = append(f.dirFiles, listDir(inv.Dir))
	idx := len(f.invocations) - 1

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if f.script != nil {
		return f.script(inv), nil
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return &sandbox.Result{}, nil
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Base(e.Name()))
	}
	return names
}
