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

// EvaluateHandler grades typed answers, single or batched. A non-empty
// questions array in the body selects batch mode.
type EvaluateHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluateHandler constructs an evaluate handler.
func NewEvaluateHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluateHandler {
	return &EvaluateHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluate_handler").Logger(),
	}
}

// Register wires text evaluation routes.
func (h *EvaluateHandler) Register(router fiber.Router) {
	router.Post("/evaluate", h.evaluate)
}

func (h *EvaluateHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "Missing required fields")
	}

	if payload.IsBatch() {
		results, err := h.service.EvaluateBatch(c.Context(), dto.BatchTextRequest{
			Questions: payload.Questions,
			Answers:   payload.Answers,
		})
		if err != nil {
			return h.sendEvaluationError(c, err)
		}
		return c.JSON(results)
	}

	result, err := h.service.EvaluateText(c.Context(), dto.SingleTextRequest{
		Question:      payload.Question,
		ModelAnswer:   payload.ModelAnswer,
		StudentAnswer: payload.StudentAnswer,
		MaxMarks:      payload.MaxMarks,
	})
	if err != nil {
		return h.sendEvaluationError(c, err)
	}
	return c.JSON(result)
}

// sendEvaluationError maps pipeline errors shared by the evaluation
// endpoints. Model failures never reach here; the service absorbs them
// into fallback results.
func (h *EvaluateHandler) sendEvaluationError(c *fiber.Ctx, err error) error {
	logger := requestLogger(h.logger, c)
	switch {
	case errors.Is(err, genai.ErrMissingAPIKey):
		logger.Error().Err(err).Msg("evaluation rejected: no model credential configured")
		return utils.SendErrorWithDetails(c, fiber.StatusInternalServerError,
			"Missing API Key in Environment Variables",
			"Set GEMINI_API_KEY before starting the server.")
	case errors.Is(err, service.ErrNoQuestions), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, "Missing required fields")
	default:
		logger.Error().Err(err).Msg("evaluation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "Evaluation failed")
	}
}
