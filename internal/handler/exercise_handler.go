package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/corrigo/corrigo-api/internal/dto"
	"github.com/corrigo/corrigo-api/internal/service"
	"github.com/corrigo/corrigo-api/internal/utils"
)

// ExerciseHandler manages exercise endpoints.
type ExerciseHandler struct {
	service   service.ExerciseService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewExerciseHandler builds an exercise handler instance.
func NewExerciseHandler(service service.ExerciseService, validator *validator.Validate, logger zerolog.Logger) *ExerciseHandler {
	return &ExerciseHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "exercise_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ExerciseHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
}

func (h *ExerciseHandler) list(c *fiber.Ctx) error {
	exercises, err := h.service.List(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercises retrieved", exercises)
}

func (h *ExerciseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	exercise, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercise retrieved", exercise)
}

func (h *ExerciseHandler) create(c *fiber.Ctx) error {
	var payload dto.ExerciseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exercise, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exercise created", exercise)
}

func (h *ExerciseHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrExerciseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exercise not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
