package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/itstheanurag/codejudge/internal/metrics"
	"github.com/rs/zerolog"
)

// Workspace is the scratch directory owned by exactly one job.
type Workspace struct {
	ID  string
	Dir string

	released atomic.Bool
}

// Manager hands out workspaces under a shared scratch root. Names are random
// UUIDs, so concurrent jobs never need to coordinate.
type Manager struct {
	root   string
	logger *zerolog.Logger
}

func NewManager(root string, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{root: root, logger: logger}
}

func (m *Manager) Root() string { return m.root }

// Allocate creates the scratch root if needed and a fresh directory in it.
func (m *Manager) Allocate() (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root: %w", err)
	}

	id := uuid.NewString()
	dir := filepath.Join(m.root, "job-"+id)
	// Mkdir, not MkdirAll: an existing directory must never be handed out twice.
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	metrics.ActiveWorkspaces.Inc()
	return &Workspace{ID: id, Dir: dir}, nil
}

// Release removes the workspace. It is idempotent and never fails: errors are
// logged and dropped so cleanup cannot hide the job's own outcome.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil || !ws.released.CompareAndSwap(false, true) {
		return
	}
	metrics.ActiveWorkspaces.Dec()
	if err := os.RemoveAll(ws.Dir); err != nil {
		m.logger.Warn().Err(err).Str("workspace", ws.Dir).Msg("failed to remove workspace")
	}
}

// With runs fn inside a freshly allocated workspace and releases it on every
// exit path, panics included.
func (m *Manager) With(ctx context.Context, fn func(ctx context.Context, ws *Workspace) error) error {
	ws, err := m.Allocate()
	if err != nil {
		return err
	}
	defer m.Release(ws)
	return fn(ctx, ws)
}
