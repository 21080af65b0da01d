package handler_test

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/markwise/markwise-api/internal/dto"
	"github.com/markwise/markwise-api/internal/handler"
	"github.com/markwise/markwise-api/internal/service"
)

func newOCRApp(svc service.EvaluationService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1")
	handler.NewOCREvaluateHandler(svc, zerolog.New(io.Discard)).Register(group)
	return app
}

func TestOCREvaluateHandler_SingleImage(t *testing.T) {
	relevant := true
	svc := &mockEvaluationService{imageResult: dto.SingleImageResult{
		ExtractedText: "supply curve shifts right",
		IsRelevant:    &relevant,
		Score:         4,
		MaxMarks:      5,
		Improvements:  []string{},
		Feedback:      "good",
	}}
	app := newOCRApp(svc)

	resp := postJSON(t, app, "/api/v1/ocr-evaluate", dto.OCREvaluateRequest{
		Image:    "aGVsbG8=",
		Question: "Explain supply",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.SingleImageResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, "supply curve shifts right", result.ExtractedText)
	require.Equal(t, 1, svc.imageCalls)
	require.Zero(t, svc.sheetCalls)
}

func TestOCREvaluateHandler_FullSheetMode(t *testing.T) {
	svc := &mockEvaluationService{sheetResult: dto.FullSheetResult{
		Results:       []dto.SheetItemResult{{QuestionID: "q1", QuestionNumber: 1, MaxMarks: 5, Improvements: []string{}}},
		TotalMaxMarks: 5,
	}}
	app := newOCRApp(svc)

	resp := postJSON(t, app, "/api/v1/ocr-evaluate", dto.OCREvaluateRequest{
		Mode:      dto.ModeFullSheet,
		Images:    []dto.ImagePartDTO{{Data: "aGVsbG8="}},
		Questions: []dto.QuestionSpec{{ID: "q1", Text: "One", Marks: 5}},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.FullSheetResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Results, 1)
	require.Equal(t, 1, svc.sheetCalls)
	require.Zero(t, svc.imageCalls)
}

func TestOCREvaluateHandler_MissingImage(t *testing.T) {
	svc := &mockEvaluationService{err: service.ErrNoImages}
	app := newOCRApp(svc)

	resp := postJSON(t, app, "/api/v1/ocr-evaluate", dto.OCREvaluateRequest{Question: "Explain supply"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "No image provided. Send base64 image data.", body["error"])
}

func TestOCREvaluateHandler_FullSheetWithoutQuestions(t *testing.T) {
	svc := &mockEvaluationService{err: service.ErrNoQuestions}
	app := newOCRApp(svc)

	resp := postJSON(t, app, "/api/v1/ocr-evaluate", dto.OCREvaluateRequest{
		Mode:   dto.ModeFullSheet,
		Images: []dto.ImagePartDTO{{Data: "aGVsbG8="}},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "Missing required fields", body["error"])
}
