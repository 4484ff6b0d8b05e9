package grading

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/pkg/ai"
)

// fakeFetcher materialises a fixture tree instead of cloning.
type fakeFetcher struct {
	mu       sync.Mutex
	files    map[string]string
	cloneErr error
	removed  []string
	clones   int
}

func (f *fakeFetcher) Clone(ctx context.Context, repoURL, dest string) error {
	f.mu.Lock()
	f.clones++
	f.mu.Unlock()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if f.cloneErr != nil {
		return f.cloneErr
	}
	for name, content := range f.files {
		path := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFetcher) Remove(path string) error {
	f.mu.Lock()
	f.removed = append(f.removed, path)
	f.mu.Unlock()
	return os.RemoveAll(path)
}

func (f *fakeFetcher) removeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.removed)
}

type stubGrader struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	last      ai.CompletionRequest
}

func (s *stubGrader) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	s.last = req

	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if len(s.responses) == 0 {
		return "", errors.New("no response configured")
	}
	if i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[i], nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]GradingResult
}

func (m *memoryCache) Get(ctx context.Context, key string) (GradingResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.entries[key]
	return result, ok
}

func (m *memoryCache) Set(ctx context.Context, key string, result GradingResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]GradingResult)
	}
	m.entries[key] = result
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func mustVariant(t *testing.T, title string) Variant {
	t.Helper()
	variant, err := LookupVariant(title)
	require.NoError(t, err)
	return variant
}

func newTestGuard(t *testing.T, fetcher Fetcher) *WorkspaceGuard {
	t.Helper()
	return NewWorkspaceGuard(t.TempDir(), fetcher, zerolog.Nop())
}
