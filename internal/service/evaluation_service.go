package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/pkg/git"
)

// ErrEvaluationNotFound indicates the stored evaluation cannot be located.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// ErrHistoryUnavailable indicates evaluation history is not configured.
var ErrHistoryUnavailable = errors.New("evaluation history unavailable")

// GradingPipeline runs evaluations. *grading.Pipeline satisfies it.
type GradingPipeline interface {
	Run(ctx context.Context, req grading.Request) (grading.Report, error)
	Preview(ctx context.Context, req grading.Request) (grading.Preview, error)
	TotalMarks() int
}

// EvaluationService exposes repository evaluation operations.
type EvaluationService interface {
	Evaluate(ctx context.Context, payload dto.EvaluateRequest) (grading.GradingResult, error)
	Preview(ctx context.Context, payload dto.EvaluateRequest) (grading.Preview, error)
	Get(ctx context.Context, id string) (dto.EvaluationResponse, error)
	List(ctx context.Context, filter repository.EvaluationFilter) ([]dto.EvaluationResponse, error)
}

// EvaluationServiceConfig tunes the evaluation service.
type EvaluationServiceConfig struct {
	MaxConcurrent int64
	Provider      string
	// RepoProtocols lists the URL schemes accepted for repositories.
	RepoProtocols []string
}

type evaluationService struct {
	pipeline  GradingPipeline
	history   repository.EvaluationRepository
	events    EventPublisher
	validator *validator.Validate
	slots     *semaphore.Weighted
	protocols []string
	provider  string
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewEvaluationService constructs the evaluation service. history and events may be nil.
func NewEvaluationService(pipeline GradingPipeline, history repository.EvaluationRepository, events EventPublisher, validate *validator.Validate, logger zerolog.Logger, cfg EvaluationServiceConfig) EvaluationService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if len(cfg.RepoProtocols) == 0 {
		cfg.RepoProtocols = git.DefaultProtocols
	}

	return &evaluationService{
		pipeline:  pipeline,
		history:   history,
		events:    events,
		validator: validate,
		slots:     semaphore.NewWeighted(cfg.MaxConcurrent),
		protocols: cfg.RepoProtocols,
		provider:  cfg.Provider,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grader/internal/service/evaluation"),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, payload dto.EvaluateRequest) (grading.GradingResult, error) {
	req, err := s.accept(payload)
	if err != nil {
		return grading.GradingResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "evaluations.evaluate", trace.WithAttributes(
		attribute.String("evaluation.kind", string(req.Variant.Kind)),
		attribute.String("evaluation.repo_url", req.RepoURL),
	))
	defer span.End()

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return grading.GradingResult{}, fmt.Errorf("wait for evaluation slot: %w", err)
	}
	defer s.slots.Release(1)

	observability.EvaluationsInFlight().Inc()
	defer observability.EvaluationsInFlight().Dec()

	id := uuid.NewString()
	start := time.Now()
	report, err := s.pipeline.Run(ctx, req)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		observability.EvaluationsTotal().WithLabelValues(string(req.Variant.Kind), models.EvaluationStatusFailed).Inc()
		s.record(ctx, id, req, grading.Report{}, err, duration)
		return grading.GradingResult{}, err
	}

	observability.EvaluationsTotal().WithLabelValues(string(req.Variant.Kind), models.EvaluationStatusCompleted).Inc()
	observability.EvaluationScore().WithLabelValues(string(req.Variant.Kind)).Observe(scoreRatio(report))
	s.record(ctx, id, req, report, nil, duration)

	s.logger.Info().
		Str("evaluation_id", id).
		Str("kind", string(req.Variant.Kind)).
		Int("total_score", report.Result.TotalScore).
		Bool("cached", report.Cached).
		Dur("duration", duration).
		Msg("repository evaluated")

	return report.Result, nil
}

func (s *evaluationService) Preview(ctx context.Context, payload dto.EvaluateRequest) (grading.Preview, error) {
	req, err := s.accept(payload)
	if err != nil {
		return grading.Preview{}, err
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return grading.Preview{}, fmt.Errorf("wait for evaluation slot: %w", err)
	}
	defer s.slots.Release(1)

	return s.pipeline.Preview(ctx, req)
}

func (s *evaluationService) Get(ctx context.Context, id string) (dto.EvaluationResponse, error) {
	if s.history == nil {
		return dto.EvaluationResponse{}, ErrHistoryUnavailable
	}

	evaluation, err := s.history.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) List(ctx context.Context, filter repository.EvaluationFilter) ([]dto.EvaluationResponse, error) {
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}

	evaluations, err := s.history.ListRecent(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewEvaluationResponseSlice(evaluations), nil
}

// accept validates the payload and selects the variant for its title.
func (s *evaluationService) accept(payload dto.EvaluateRequest) (grading.Request, error) {
	if err := s.validator.Struct(payload); err != nil {
		return grading.Request{}, fmt.Errorf("%w: %w", grading.ErrInvalidRequest, err)
	}
	if err := git.CheckURL(payload.RepoURL, s.protocols); err != nil {
		return grading.Request{}, fmt.Errorf("%w: %w", grading.ErrInvalidRequest, err)
	}

	return grading.NewRequest(payload.RepoURL, payload.Title, payload.CustomCriteria())
}

// record stores the outcome and publishes an event. Failures here are logged only.
func (s *evaluationService) record(ctx context.Context, id string, req grading.Request, report grading.Report, runErr error, duration time.Duration) {
	status := models.EvaluationStatusCompleted
	eventType := EventEvaluationCompleted
	if runErr != nil {
		status = models.EvaluationStatusFailed
		eventType = EventEvaluationFailed
	}

	if s.history != nil {
		evaluation := models.Evaluation{
			ID:         id,
			RepoURL:    req.RepoURL,
			Title:      req.Variant.Title,
			Kind:       string(req.Variant.Kind),
			Status:     status,
			TotalScore: report.Result.TotalScore,
			TotalMarks: s.pipeline.TotalMarks(),
			Analysis:   report.Result.Analysis,
			Provider:   s.provider,
			Cached:     report.Cached,
			DurationMS: duration.Milliseconds(),
		}
		if runErr != nil {
			evaluation.Error = runErr.Error()
		}
		if len(report.Result.Scores) > 0 {
			scores := make(datatypes.JSONMap, len(report.Result.Scores))
			for criterion, score := range report.Result.Scores {
				scores[criterion] = score
			}
			evaluation.Scores = scores
		}
		evaluation.Files = jsonList(report.Files)
		evaluation.Warnings = jsonList(report.Warnings)

		if err := s.history.Create(ctx, &evaluation); err != nil {
			s.logger.Warn().Err(err).Str("evaluation_id", id).Msg("failed to store evaluation history")
		}
	}

	if s.events != nil {
		event := EvaluationEvent{
			Type:         eventType,
			EvaluationID: id,
			RepoURL:      req.RepoURL,
			Title:        req.Variant.Title,
			Kind:         string(req.Variant.Kind),
			TotalScore:   report.Result.TotalScore,
			Scores:       report.Result.Scores,
			Cached:       report.Cached,
			DurationMS:   duration.Milliseconds(),
			OccurredAt:   time.Now().UTC(),
		}
		if runErr != nil {
			event.Error = runErr.Error()
		} else {
			event.TotalMarks = s.pipeline.TotalMarks()
		}

		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("evaluation_id", id).Msg("failed to publish evaluation event")
		}
	}
}

func jsonList(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(encoded)
}

func scoreRatio(report grading.Report) float64 {
	if report.Rubric.TotalMarks <= 0 {
		return 0
	}
	return float64(report.Result.TotalScore) / float64(report.Rubric.TotalMarks)
}
