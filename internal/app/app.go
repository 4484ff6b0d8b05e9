// Package app assembles the grading service from configuration.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/database"
	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/router"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/pkg/ai"
	"github.com/noah-isme/gema-grader/pkg/git"
)

// Options alter how the application is assembled.
type Options struct {
	// Grader replaces the configured AI provider.
	Grader ai.Grader
	// Fetcher replaces the git command line fetcher.
	Fetcher grading.Fetcher
	// Offline skips Postgres, Redis and NATS even when configured.
	Offline bool
}

// App holds the wired service and its backing connections.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Pipeline *grading.Pipeline
	Service  service.EvaluationService
	Validate *validator.Validate

	db      *gorm.DB
	redis   *redis.Client
	nats    *nats.Conn
	pingers map[string]handler.HealthPinger
}

// New wires the grading pipeline, the evaluation service and every optional backing service.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		pingers:  make(map[string]handler.HealthPinger),
	}

	grader := opts.Grader
	provider := cfg.AIProvider
	if grader == nil {
		built, err := NewGrader(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		grader = built
	} else {
		provider = "custom"
	}

	if !opts.Offline {
		if err := a.connect(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = git.NewFetcher(git.Config{
			Binary:           cfg.GitBinary,
			Timeout:          cfg.GitCloneTimeout,
			Depth:            cfg.GitCloneDepth,
			AllowedProtocols: cfg.GitProtocols,
			Logger:           logger,
		})
	}

	var cache grading.ResultCache
	if a.redis != nil {
		cache = service.NewRedisResultCache(a.redis, cfg.CacheTTL, logger)
	}

	a.Pipeline = grading.NewPipeline(grading.PipelineDeps{
		Guard:     grading.NewWorkspaceGuard(cfg.WorkspaceRoot, fetcher, logger),
		Extractor: grading.NewExtractor(nil, logger),
		Grader:    grader,
		Cache:     cache,
		Logger:    logger,
	}, grading.PipelineConfig{
		TotalMarks:     cfg.TotalMarks,
		SystemPrompt:   ai.DefaultSystemPrompt,
		GraderTimeout:  cfg.GraderTimeout,
		MaxAttempts:    cfg.GraderMaxAttempts,
		RetryBackoff:   cfg.GraderRetryDelay,
		CacheNamespace: provider + ":" + cfg.AIModel,
	})

	var history repository.EvaluationRepository
	if a.db != nil {
		history = repository.NewEvaluationRepository(a.db)
	}

	var events service.EventPublisher
	if a.nats != nil {
		events = service.NewNATSEventPublisher(a.nats, cfg.NATSSubject)
	}

	a.Service = service.NewEvaluationService(a.Pipeline, history, events, a.Validate, logger, service.EvaluationServiceConfig{
		MaxConcurrent: int64(cfg.MaxConcurrent),
		Provider:      provider,
		RepoProtocols: cfg.GitProtocols,
	})

	return a, nil
}

// NewGrader builds the AI grader selected by cfg.AIProvider.
func NewGrader(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ai.Grader, error) {
	settings := ai.Settings{
		Model:       cfg.AIModel,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
	}

	switch strings.ToLower(cfg.AIProvider) {
	case "", "openai":
		return ai.NewOpenAIGrader(ai.OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Settings: settings,
			Logger:   logger,
		})
	case "gemini":
		return ai.NewGeminiGrader(ctx, ai.GeminiConfig{
			APIKey:   cfg.GeminiAPIKey,
			Settings: settings,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	if cfg.DatabaseURL != "" {
		db, err := database.ConnectPostgres(ctx, cfg.DatabaseURL, database.PostgresOptions{
			MaxOpenConns:    cfg.MaxConcurrent * 2,
			MaxIdleConns:    cfg.MaxConcurrent,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(&models.Evaluation{}); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		a.db = db
		a.pingers["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		a.redis = client
		a.pingers["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}

	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			return err
		}
		a.nats = conn
		a.pingers["nats"] = func(context.Context) error {
			if !conn.IsConnected() {
				return fmt.Errorf("nats %s", conn.Status())
			}
			return nil
		}
	}

	return nil
}

// HTTP builds the Fiber application serving the evaluation API.
func (a *App) HTTP() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:      a.Config.AppName,
		ServerHeader: a.Config.AppName,
	})

	middleware.Register(server, middleware.Config{Logger: &a.Logger})

	deps := router.Dependencies{
		EvaluationHandler:        handler.NewEvaluationHandler(a.Service, a.Validate, a.Logger),
		EvaluationHistoryHandler: handler.NewEvaluationHistoryHandler(a.Service, a.Logger),
		HealthPingers:            a.pingers,
	}
	if a.Config.JWTSecret != "" {
		deps.JWTMiddleware = middleware.JWTProtected(a.Config.JWTSecret)
	}

	router.Register(server, a.Config, deps)
	return server
}

// Close releases backing connections.
func (a *App) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
