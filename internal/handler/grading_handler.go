package handler

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Canvas-Copilot/backend/internal/dto"
	"github.com/Canvas-Copilot/backend/internal/middleware"
	"github.com/Canvas-Copilot/backend/internal/models"
	"github.com/Canvas-Copilot/backend/internal/observability"
	"github.com/Canvas-Copilot/backend/internal/queue"
	"github.com/Canvas-Copilot/backend/internal/service"
	"github.com/Canvas-Copilot/backend/internal/utils"
)

// GradingHandler exposes the enqueue and status-poll endpoints of the grading
// pipeline.
type GradingHandler struct {
	queue     queue.TaskQueue
	events    *service.TaskEventPublisher
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradingHandler builds a grading handler instance.
func NewGradingHandler(q queue.TaskQueue, events *service.TaskEventPublisher, validate *validator.Validate, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		queue:     q,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/generate", h.generate)
	router.Get("/status/:task_id", h.status)
}

// generate validates the grading request and enqueues it, returning the task
// id immediately. Invalid payloads are rejected before any task exists.
func (h *GradingHandler) generate(c *fiber.Ctx) error {
	var payload dto.RequestGradingDto
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		h.logger.Warn().Err(err).Msg("grading request failed validation")
		return utils.SendValidationError(c, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to serialize grading request")
	}

	credential := middleware.BearerToken(c)
	taskID, err := h.queue.Enqueue(c.Context(), credential, body)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to enqueue grading task")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to enqueue grading task")
	}

	observability.GradingEnqueued().Inc()
	h.events.Publish(taskID, models.TaskStatusPending, "")
	h.logger.Info().
		Str("task_id", taskID).
		Str("correlation_id", middleware.GetCorrelationID(c)).
		Int("submissions", len(payload.Submissions)).
		Msg("grading task enqueued")

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "grading task enqueued", dto.EnqueueResponse{TaskID: taskID})
}

// status reports the current lifecycle state of a task. An unknown id is a
// 404, never a PENDING.
func (h *GradingHandler) status(c *fiber.Ctx) error {
	taskID := c.Params("task_id")

	view, err := h.queue.Status(c.Context(), taskID)
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "task not found")
		}
		h.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to read task status")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to retrieve task status")
	}

	response := dto.TaskStatusResponse{
		TaskID: view.TaskID,
		Status: view.Status,
		Result: view.Result,
	}
	if view.Status == models.TaskStatusFailure {
		summary := view.ErrorSummary
		response.ErrorSummary = &summary
	}

	observability.GradingPolls().WithLabelValues(string(view.Status)).Inc()
	return utils.SendSuccess(c, "task status retrieved", response)
}
