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

// CorrectionHandler manages professor review endpoints.
type CorrectionHandler struct {
	service   service.CorrectionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCorrectionHandler builds a correction handler instance.
func NewCorrectionHandler(service service.CorrectionService, validator *validator.Validate, logger zerolog.Logger) *CorrectionHandler {
	return &CorrectionHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "correction_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *CorrectionHandler) Register(router fiber.Router) {
	router.Post("/:id/review", h.review)
}

func (h *CorrectionHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CorrectionReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	correction, err := h.service.Review(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("correction_id", correction.ID).Msg("correction review recorded")

	return utils.SendSuccess(c, "correction reviewed", correction)
}

func (h *CorrectionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrCorrectionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "correction not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
