package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/markwise/markwise-api/internal/dto"
	"github.com/markwise/markwise-api/pkg/genai"
)

// ErrNoImages indicates an image evaluation request without any image.
var ErrNoImages = errors.New("no image provided")

// ErrNoQuestions indicates a batch or full-sheet request without questions.
var ErrNoQuestions = errors.New("no questions provided")

// defaultModelAnswer substitutes for an instructor answer the request omitted.
const defaultModelAnswer = "The official solution was not provided."

const defaultMaxMarks = 5

// EvaluationService runs the four-stage evaluation pipeline for each of the
// request modes. Model and parser failures are absorbed into zero-score
// fallback results; only caller bugs (validation) and missing configuration
// surface as errors.
type EvaluationService interface {
	EvaluateText(ctx context.Context, req dto.SingleTextRequest) (dto.SingleTextResult, error)
	EvaluateBatch(ctx context.Context, req dto.BatchTextRequest) ([]dto.BatchItemResult, error)
	EvaluateImage(ctx context.Context, req dto.OCREvaluateRequest) (dto.SingleImageResult, error)
	EvaluateFullSheet(ctx context.Context, req dto.OCREvaluateRequest) (dto.FullSheetResult, error)
}

type evaluationService struct {
	gateway   genai.Gateway
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewEvaluationService constructs the orchestrator.
func NewEvaluationService(gateway genai.Gateway, validate *validator.Validate, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		gateway:   gateway,
		validator: validate,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
	}
}

func (s *evaluationService) EvaluateText(ctx context.Context, req dto.SingleTextRequest) (dto.SingleTextResult, error) {
	tracer := otel.Tracer("github.com/markwise/markwise-api/internal/service/evaluation")
	ctx, span := tracer.Start(ctx, "evaluation.text")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SingleTextResult{}, err
	}

	maxMarks := req.MaxMarks
	if maxMarks <= 0 {
		maxMarks = defaultMaxMarks
	}
	modelAnswer := req.ModelAnswer
	if strings.TrimSpace(modelAnswer) == "" {
		modelAnswer = defaultModelAnswer
	}

	prompt := genai.BuildTextPrompt(req.Question, modelAnswer, req.StudentAnswer, maxMarks)
	raw, err := s.gateway.Generate(ctx, genai.GenerateRequest{
		Prompt:          prompt,
		Temperature:     0.4,
		TopK:            32,
		TopP:            1,
		MaxOutputTokens: 512,
		// Single typed answers are cheap enough to retry once.
		Attempts: 2,
	})
	if err != nil {
		if errors.Is(err, genai.ErrMissingAPIKey) {
			span.SetStatus(codes.Error, "missing_api_key")
			return dto.SingleTextResult{}, err
		}
		s.logger.Warn().Err(err).Msg("text evaluation fell back to zero score")
		span.RecordError(err)
		return textFallback(err), nil
	}

	payload := genai.ParseSingle(raw)
	span.SetAttributes(attribute.Float64("evaluation.score", payload.Score))

	return dto.SingleTextResult{
		Score:        clampScore(payload.Score, float64(maxMarks)),
		Improvements: payload.Improvements,
		Feedback:     payload.Feedback,
	}, nil
}

func (s *evaluationService) EvaluateBatch(ctx context.Context, req dto.BatchTextRequest) ([]dto.BatchItemResult, error) {
	tracer := otel.Tracer("github.com/markwise/markwise-api/internal/service/evaluation")
	ctx, span := tracer.Start(ctx, "evaluation.batch")
	defer span.End()

	if len(req.Questions) == 0 {
		span.SetStatus(codes.Error, "no_questions")
		return nil, ErrNoQuestions
	}
	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return nil, err
	}

	questions := dto.ToPipelineQuestions(req.Questions)
	for i := range questions {
		if strings.TrimSpace(questions[i].ModelAnswer) == "" {
			questions[i].ModelAnswer = defaultModelAnswer
		}
	}

	prompt := genai.BuildBatchPrompt(questions, req.Answers)
	raw, err := s.gateway.Generate(ctx, genai.GenerateRequest{
		Prompt:          prompt,
		Temperature:     0.4,
		TopK:            32,
		TopP:            1,
		MaxOutputTokens: 2048,
		Attempts:        1,
	})
	if err != nil {
		if errors.Is(err, genai.ErrMissingAPIKey) {
			span.SetStatus(codes.Error, "missing_api_key")
			return nil, err
		}
		s.logger.Warn().Err(err).Int("questions", len(questions)).Msg("batch evaluation fell back to zero scores")
		span.RecordError(err)
		return batchFallback(questions, err), nil
	}

	items := genai.ParseBatch(raw, questions)
	span.SetAttributes(attribute.Int("evaluation.questions", len(questions)))

	return joinBatchResults(questions, req.Answers, items), nil
}

func (s *evaluationService) EvaluateImage(ctx context.Context, req dto.OCREvaluateRequest) (dto.SingleImageResult, error) {
	tracer := otel.Tracer("github.com/markwise/markwise-api/internal/service/evaluation")
	ctx, span := tracer.Start(ctx, "evaluation.image")
	defer span.End()

	images := req.ImageList()
	if len(images) == 0 {
		span.SetStatus(codes.Error, "no_images")
		return dto.SingleImageResult{}, ErrNoImages
	}

	maxMarks := req.MaxMarks
	if maxMarks <= 0 {
		maxMarks = defaultMaxMarks
	}

	prompt := genai.BuildImagePrompt(req.Question, req.ModelAnswer, maxMarks, len(images))
	raw, err := s.gateway.Generate(ctx, genai.GenerateRequest{
		Prompt:      prompt,
		Images:      dto.ToPipelineImages(images),
		Temperature: 0.2,
		Attempts:    1,
	})
	if err != nil {
		if errors.Is(err, genai.ErrMissingAPIKey) {
			span.SetStatus(codes.Error, "missing_api_key")
			return dto.SingleImageResult{}, err
		}
		s.logger.Warn().Err(err).Int("pages", len(images)).Msg("image evaluation fell back to zero score")
		span.RecordError(err)
		return imageFallback(maxMarks, err), nil
	}

	payload := genai.ParseSingle(raw)
	span.SetAttributes(attribute.Float64("evaluation.score", payload.Score))

	return dto.SingleImageResult{
		ExtractedText: payload.ExtractedText,
		IsRelevant:    payload.IsRelevant,
		Score:         clampScore(payload.Score, float64(maxMarks)),
		MaxMarks:      float64(maxMarks),
		Improvements:  payload.Improvements,
		Feedback:      payload.Feedback,
	}, nil
}

func (s *evaluationService) EvaluateFullSheet(ctx context.Context, req dto.OCREvaluateRequest) (dto.FullSheetResult, error) {
	tracer := otel.Tracer("github.com/markwise/markwise-api/internal/service/evaluation")
	ctx, span := tracer.Start(ctx, "evaluation.full_sheet")
	defer span.End()

	images := req.ImageList()
	if len(images) == 0 {
		span.SetStatus(codes.Error, "no_images")
		return dto.FullSheetResult{}, ErrNoImages
	}
	if len(req.Questions) == 0 {
		span.SetStatus(codes.Error, "no_questions")
		return dto.FullSheetResult{}, ErrNoQuestions
	}

	questions := dto.ToPipelineQuestions(req.Questions)
	prompt := genai.BuildFullSheetPrompt(questions, len(images))
	raw, err := s.gateway.Generate(ctx, genai.GenerateRequest{
		Prompt:      prompt,
		Images:      dto.ToPipelineImages(images),
		Temperature: 0.2,
		Attempts:    1,
	})
	if err != nil {
		if errors.Is(err, genai.ErrMissingAPIKey) {
			span.SetStatus(codes.Error, "missing_api_key")
			return dto.FullSheetResult{}, err
		}
		s.logger.Warn().Err(err).Int("questions", len(questions)).Msg("full-sheet evaluation fell back to zero scores")
		span.RecordError(err)
		return sheetFallback(questions, err), nil
	}

	sheet := genai.ParseSheet(raw, questions)
	result := joinSheetResults(questions, sheet)
	span.SetAttributes(
		attribute.Int("evaluation.questions", len(questions)),
		attribute.Float64("evaluation.total_score", result.TotalScore),
	)
	return result, nil
}
