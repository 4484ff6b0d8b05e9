package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

const (
	msgInvalidRequest   = "Invalid evaluation request"
	msgRepositoryFailed = "Repository evaluation failed"
	msgEvaluationFailed = "Failed to evaluate repository"
)

// EvaluationHandler exposes the repository evaluation endpoint.
type EvaluationHandler struct {
	service   service.EvaluationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(service service.EvaluationService, validator *validator.Validate, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Evaluate handles POST /evaluate.
func (h *EvaluationHandler) Evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendFailure(c, fiber.StatusBadRequest, msgInvalidRequest, "invalid request body")
	}

	if h.validator != nil {
		if err := h.validator.Struct(payload); err != nil {
			return utils.SendFailure(c, fiber.StatusBadRequest, msgInvalidRequest, err.Error())
		}
	}

	result, err := h.service.Evaluate(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendFeedback(c, result)
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	status, message := evaluationFailure(err)

	logger := requestLogger(h.logger, c)
	event := logger.Error()
	if status < fiber.StatusInternalServerError {
		event = logger.Warn()
	}
	event.Err(err).Int("status", status).Msg("evaluation request failed")

	return utils.SendFailure(c, status, message, err.Error())
}

// evaluationFailure maps pipeline errors to a status code and public message.
func evaluationFailure(err error) (int, string) {
	switch {
	case errors.Is(err, grading.ErrInvalidRequest),
		errors.Is(err, grading.ErrUnknownKind),
		errors.Is(err, grading.ErrInvalidRubric),
		isValidationError(err):
		return fiber.StatusBadRequest, msgInvalidRequest
	case errors.Is(err, grading.ErrWorkspace):
		return fiber.StatusBadGateway, msgRepositoryFailed
	case errors.Is(err, grading.ErrAIRequest),
		errors.Is(err, grading.ErrResponseFormat):
		return fiber.StatusBadGateway, msgEvaluationFailed
	case errors.Is(err, grading.ErrEntrypointNotFound),
		errors.Is(err, grading.ErrFileRead):
		return fiber.StatusUnprocessableEntity, msgEvaluationFailed
	default:
		return fiber.StatusInternalServerError, msgEvaluationFailed
	}
}
