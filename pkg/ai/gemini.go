package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig defines configuration options for the Gemini grader.
type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, mostly for tests and proxies.
	BaseURL  string
	Settings Settings
	Logger   zerolog.Logger
}

// GeminiGrader implements Grader against the Gemini API.
type GeminiGrader struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiGrader builds a Gemini backed grader.
func NewGeminiGrader(ctx context.Context, cfg GeminiConfig) (*GeminiGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	if cfg.Settings.Model == "" {
		cfg.Settings.Model = defaultGeminiModel
	}

	if cfg.Settings.MaxTokens == 0 {
		cfg.Settings.MaxTokens = 500
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GeminiGrader{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grader/pkg/ai/gemini"),
		logger: logger.With().Str("component", "gemini_grader").Logger(),
	}, nil
}

// Model returns the configured model identifier.
func (g *GeminiGrader) Model() string {
	return g.cfg.Settings.Model
}

// Complete sends the prompt to Gemini and returns the concatenated text parts.
func (g *GeminiGrader) Complete(parent context.Context, req CompletionRequest) (string, error) {
	model := g.cfg.Settings.Model
	ctx, span := g.tracer.Start(parent, "gemini.complete", trace.WithAttributes(
		attribute.String("model", model),
		attribute.Int("prompt_bytes", len(req.Prompt)),
	))
	defer span.End()

	system := req.System
	if system == "" {
		system = DefaultSystemPrompt
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Settings.Temperature),
		MaxOutputTokens:   int32(g.cfg.Settings.MaxTokens),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	completionDuration.WithLabelValues("gemini", model).Observe(time.Since(start).Seconds())
	if err != nil {
		completionFailures.WithLabelValues("gemini", model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini complete: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		err := errors.New("gemini returned no text")
		completionFailures.WithLabelValues("gemini", model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return text, nil
}
