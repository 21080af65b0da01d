package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/markwise/markwise-api/internal/dto"
	"github.com/markwise/markwise-api/internal/service"
	"github.com/markwise/markwise-api/internal/utils"
	"github.com/markwise/markwise-api/pkg/genai"
)

// OCREvaluateHandler grades photographed answers. mode=full-sheet grades a
// whole answer sheet against the request's question list; any other mode
// grades the pages as one answer.
type OCREvaluateHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewOCREvaluateHandler constructs an OCR evaluate handler.
func NewOCREvaluateHandler(service service.EvaluationService, logger zerolog.Logger) *OCREvaluateHandler {
	return &OCREvaluateHandler{
		service: service,
		logger:  logger.With().Str("component", "ocr_evaluate_handler").Logger(),
	}
}

// Register wires image evaluation routes.
func (h *OCREvaluateHandler) Register(router fiber.Router) {
	router.Post("/ocr-evaluate", h.evaluate)
}

func (h *OCREvaluateHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.OCREvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "Missing required fields")
	}

	if payload.Mode == dto.ModeFullSheet {
		result, err := h.service.EvaluateFullSheet(c.Context(), payload)
		if err != nil {
			return h.sendOCRError(c, err)
		}
		return c.JSON(result)
	}

	result, err := h.service.EvaluateImage(c.Context(), payload)
	if err != nil {
		return h.sendOCRError(c, err)
	}
	return c.JSON(result)
}

func (h *OCREvaluateHandler) sendOCRError(c *fiber.Ctx, err error) error {
	logger := requestLogger(h.logger, c)
	switch {
	case errors.Is(err, genai.ErrMissingAPIKey):
		logger.Error().Err(err).Msg("evaluation rejected: no model credential configured")
		return utils.SendErrorWithDetails(c, fiber.StatusInternalServerError,
			"Missing API Key in Environment Variables",
			"Set GEMINI_API_KEY before starting the server.")
	case errors.Is(err, service.ErrNoImages):
		return utils.SendError(c, fiber.StatusBadRequest, "No image provided. Send base64 image data.")
	case errors.Is(err, service.ErrNoQuestions), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, "Missing required fields")
	default:
		logger.Error().Err(err).Msg("image evaluation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "Evaluation failed")
	}
}
