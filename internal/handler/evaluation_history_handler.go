package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// EvaluationHistoryHandler exposes stored evaluations.
type EvaluationHistoryHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHistoryHandler constructs the handler.
func NewEvaluationHistoryHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHistoryHandler {
	return &EvaluationHistoryHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_history_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *EvaluationHistoryHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *EvaluationHistoryHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 || limit > 100 {
		return utils.SendError(c, fiber.StatusBadRequest, "limit must be between 1 and 100")
	}

	filter := repository.EvaluationFilter{
		RepoURL: strings.TrimSpace(c.Query("repo_url")),
		Kind:    strings.TrimSpace(c.Query("kind")),
		Status:  strings.TrimSpace(c.Query("status")),
		Limit:   limit,
	}

	evaluations, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluations retrieved", evaluations)
}

func (h *EvaluationHistoryHandler) get(c *fiber.Ctx) error {
	evaluation, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *EvaluationHistoryHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrHistoryUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("evaluation history request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load evaluations")
	}
}
