package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/pkg/ai"
)

type treeFetcher struct {
	mu      sync.Mutex
	files   map[string]string
	removed int
}

func (f *treeFetcher) Clone(_ context.Context, _ string, dest string) error {
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

func (f *treeFetcher) Remove(path string) error {
	f.mu.Lock()
	f.removed++
	f.mu.Unlock()
	return os.RemoveAll(path)
}

type cannedGrader struct {
	response string
	last     ai.CompletionRequest
}

func (g *cannedGrader) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	g.last = req
	return g.response, nil
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		AppName:           "grader-test",
		AppEnv:            "test",
		AIProvider:        "openai",
		AIModel:           "gpt-test",
		WorkspaceRoot:     t.TempDir(),
		GraderTimeout:     5 * time.Second,
		GraderMaxAttempts: 1,
		MaxConcurrent:     2,
		TotalMarks:        10,
		RateLimitMax:      30,
		RateLimitWindow:   time.Minute,
	}
}

func memoryGameTree() map[string]string {
	return map[string]string{
		"index.html": `<html><head><link rel="stylesheet" href="style.css"></head><body><script src="script.js"></script></body></html>`,
		"script.js":  "const cards = [];",
		"style.css":  "body { margin: 0; }",
	}
}

func TestEvaluateEndToEnd(t *testing.T) {
	fetcher := &treeFetcher{files: memoryGameTree()}
	grader := &cannedGrader{response: "Here you go:\n" + `{"analysis":"<b>Nice</b> board","scores":{"Create a basic HTML layout with a container for the game board.":1},"totalScore":6}`}

	application, err := New(context.Background(), testConfig(t), zerolog.Nop(), Options{
		Grader:  grader,
		Fetcher: fetcher,
		Offline: true,
	})
	require.NoError(t, err)
	defer application.Close()

	server := application.HTTP()

	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"repoUrl":"https://github.com/example/memory-game","title":"Memory Game"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Feedback struct {
			Analysis   string         `json:"analysis"`
			Scores     map[string]int `json:"scores"`
			TotalScore int            `json:"totalScore"`
		} `json:"feedback"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "<b>Nice</b> board", payload.Feedback.Analysis)
	require.Equal(t, 6, payload.Feedback.TotalScore)

	require.Contains(t, grader.last.Prompt, "--- index.html ---")
	require.Contains(t, grader.last.Prompt, "const cards = [];")
	require.Equal(t, 1, fetcher.removed)

	entries, err := os.ReadDir(application.Config.WorkspaceRoot)
	require.NoError(t, err)
	require.Empty(t, entries)

	metrics, err := server.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "grader_evaluations_total")
}

func TestEvaluateUnknownTitle(t *testing.T) {
	fetcher := &treeFetcher{files: memoryGameTree()}
	application, err := New(context.Background(), testConfig(t), zerolog.Nop(), Options{
		Grader:  &cannedGrader{},
		Fetcher: fetcher,
		Offline: true,
	})
	require.NoError(t, err)
	defer application.Close()

	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"repoUrl":"https://github.com/example/x","title":"Snake"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := application.HTTP().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Zero(t, fetcher.removed)
}

func TestEvaluateRejectsLocalRepositories(t *testing.T) {
	fetcher := &treeFetcher{files: memoryGameTree()}
	grader := &cannedGrader{}
	application, err := New(context.Background(), testConfig(t), zerolog.Nop(), Options{
		Grader:  grader,
		Fetcher: fetcher,
		Offline: true,
	})
	require.NoError(t, err)
	defer application.Close()

	for _, repoURL := range []string{"/etc", "file:///etc", "ext::sh -c id"} {
		req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"repoUrl":"`+repoURL+`","title":"Memory Game"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := application.HTTP().Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, repoURL)
		resp.Body.Close()
	}

	require.Zero(t, fetcher.removed)
	require.Empty(t, grader.last.Prompt)
}

func TestHistoryUnavailableOffline(t *testing.T) {
	application, err := New(context.Background(), testConfig(t), zerolog.Nop(), Options{
		Grader:  &cannedGrader{},
		Fetcher: &treeFetcher{},
		Offline: true,
	})
	require.NoError(t, err)
	defer application.Close()

	resp, err := application.HTTP().Test(httptest.NewRequest(http.MethodGet, "/api/v1/evaluations", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, err = application.HTTP().Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "grader-test", resp.Header.Get("X-Application"))
}

func TestEvaluateRequiresTokenWhenSecretConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = "secret"

	application, err := New(context.Background(), cfg, zerolog.Nop(), Options{
		Grader:  &cannedGrader{},
		Fetcher: &treeFetcher{},
		Offline: true,
	})
	require.NoError(t, err)
	defer application.Close()

	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"repoUrl":"https://github.com/example/x","title":"Memory Game"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := application.HTTP().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestNewGraderSelectsProvider(t *testing.T) {
	cfg := testConfig(t)

	cfg.OpenAIAPIKey = "sk-test"
	grader, err := NewGrader(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, &ai.OpenAIGrader{}, grader)

	cfg.AIProvider = "mistral"
	_, err = NewGrader(context.Background(), cfg, zerolog.Nop())
	require.ErrorContains(t, err, "unsupported ai provider")
}
