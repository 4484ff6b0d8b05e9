package grading

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Fetcher produces and removes working copies of remote repositories.
type Fetcher interface {
	Clone(ctx context.Context, repoURL, dest string) error
	Remove(path string) error
}

// WorkspaceState reports whether a workspace holds a working copy.
type WorkspaceState int

const (
	WorkspaceEmpty WorkspaceState = iota
	WorkspacePopulated
)

// Workspace is the transient working copy owned by a single evaluation.
type Workspace struct {
	ID   string
	Path string

	mu       sync.Mutex
	state    WorkspaceState
	released bool
}

// State returns the current population state.
func (w *Workspace) State() WorkspaceState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Released reports whether the workspace has already been torn down.
func (w *Workspace) Released() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

// WorkspaceGuard allocates a unique workspace per evaluation and tears it down exactly once.
type WorkspaceGuard struct {
	root    string
	fetcher Fetcher
	logger  zerolog.Logger
	newID   func() string
}

// NewWorkspaceGuard builds a guard that places workspaces below root.
func NewWorkspaceGuard(root string, fetcher Fetcher, logger zerolog.Logger) *WorkspaceGuard {
	if root == "" {
		root = filepath.Join(os.TempDir(), "gema-grader")
	}

	return &WorkspaceGuard{
		root:    root,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "workspace_guard").Logger(),
		newID:   uuid.NewString,
	}
}

// Root returns the directory holding all workspaces.
func (g *WorkspaceGuard) Root() string {
	return g.root
}

// Acquire clones repoURL into a fresh workspace. A directory already present at
// the workspace path is removed first. On failure nothing is left on disk that
// the caller has to release.
func (g *WorkspaceGuard) Acquire(ctx context.Context, repoURL string) (*Workspace, error) {
	if err := os.MkdirAll(g.root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create workspace root: %w", ErrWorkspace, err)
	}

	id := g.newID()
	ws := &Workspace{ID: id, Path: filepath.Join(g.root, id)}

	if _, err := os.Stat(ws.Path); err == nil {
		g.logger.Info().Str("workspace", ws.Path).Msg("workspace already exists, cleaning it up first")
		if err := g.fetcher.Remove(ws.Path); err != nil {
			return nil, fmt.Errorf("%w: remove stale workspace: %w", ErrWorkspace, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: inspect workspace: %w", ErrWorkspace, err)
	}

	g.logger.Info().Str("workspace", ws.Path).Str("repo_url", repoURL).Msg("cloning repository")
	if err := g.fetcher.Clone(ctx, repoURL, ws.Path); err != nil {
		g.Release(ws)
		return nil, fmt.Errorf("%w: clone %s: %w", ErrWorkspace, repoURL, err)
	}

	ws.mu.Lock()
	ws.state = WorkspacePopulated
	ws.mu.Unlock()

	return ws, nil
}

// Release removes the workspace recursively. Only the first call has an effect;
// removal failures are logged and never returned.
func (g *WorkspaceGuard) Release(ws *Workspace) {
	if ws == nil {
		return
	}

	ws.mu.Lock()
	if ws.released {
		ws.mu.Unlock()
		return
	}
	ws.released = true
	ws.state = WorkspaceEmpty
	ws.mu.Unlock()

	if err := g.fetcher.Remove(ws.Path); err != nil {
		g.logger.Error().Err(err).Str("workspace", ws.Path).Msg("failed to clean up workspace")
		return
	}

	g.logger.Debug().Str("workspace", ws.Path).Msg("workspace cleaned up")
}
