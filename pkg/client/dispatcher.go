// Package client is the browser-side dispatch protocol expressed as a Go
// library: post to the primary evaluation endpoint first, fall back to
// calling the model directly with an operator-supplied key when the backend
// is unreachable. Every call resolves to a structurally valid result.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/markwise/markwise-api/internal/dto"
	"github.com/markwise/markwise-api/pkg/genai"
)

const defaultTimeout = 30 * time.Second

// Config configures a Dispatcher.
type Config struct {
	// BaseURL is the primary backend, e.g. http://localhost:8080.
	BaseURL string
	// BackendOnly disables the direct-to-model fallback entirely.
	BackendOnly bool
	// Credentials holds the operator-supplied fallback key. Optional.
	Credentials *CredentialStore
	// PromptForKey asks the operator for a key when none is stored.
	// Optional; without it the fallback only uses the stored key.
	PromptForKey func() (string, error)
	// ModelBaseURL overrides the model endpoint used by the fallback.
	ModelBaseURL string
	Timeout      time.Duration
	Logger       zerolog.Logger
}

// Dispatcher posts evaluation requests to the backend and falls back per
// mode when the backend fails. Methods never return an error; failures
// become zero-score results the caller can render like any other.
type Dispatcher struct {
	http         *resty.Client
	backendOnly  bool
	credentials  *CredentialStore
	promptKey    func() (string, error)
	modelBaseURL string
	timeout      time.Duration
	logger       zerolog.Logger
}

// New constructs a dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &Dispatcher{
		http:         http,
		backendOnly:  cfg.BackendOnly,
		credentials:  cfg.Credentials,
		promptKey:    cfg.PromptForKey,
		modelBaseURL: cfg.ModelBaseURL,
		timeout:      cfg.Timeout,
		logger:       cfg.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// EvaluateText grades one typed answer.
func (d *Dispatcher) EvaluateText(ctx context.Context, req dto.SingleTextRequest) dto.SingleTextResult {
	var result dto.SingleTextResult
	if err := d.post(ctx, "/api/v1/evaluate", req, &result); err == nil {
		return result
	} else {
		d.logger.Warn().Err(err).Msg("backend evaluation failed, attempting local fallback")
	}

	maxMarks := req.MaxMarks
	if maxMarks <= 0 {
		maxMarks = 5
	}
	modelAnswer := req.ModelAnswer
	if strings.TrimSpace(modelAnswer) == "" {
		modelAnswer = "The official solution was not provided."
	}

	payload, ok := d.fallbackGenerate(ctx, genai.GenerateRequest{
		Prompt:          genai.BuildTextPrompt(req.Question, modelAnswer, req.StudentAnswer, maxMarks),
		Temperature:     0.4,
		TopK:            32,
		TopP:            1,
		MaxOutputTokens: 512,
		Attempts:        2,
	})
	if !ok {
		return dto.SingleTextResult{
			Improvements: []string{"The evaluation service is unreachable."},
			Feedback:     "Unable to grade this answer at the moment. Please try again later.",
		}
	}

	return dto.SingleTextResult{
		Score:        clamp(payload.Score, float64(maxMarks)),
		Improvements: payload.Improvements,
		Feedback:     payload.Feedback,
	}
}

// EvaluateBatch grades several typed answers in one backend call.
func (d *Dispatcher) EvaluateBatch(ctx context.Context, req dto.BatchTextRequest) []dto.BatchItemResult {
	var results []dto.BatchItemResult
	if err := d.post(ctx, "/api/v1/evaluate", req, &results); err == nil {
		return results
	} else {
		d.logger.Warn().Err(err).Msg("backend batch evaluation failed, attempting local fallback")
	}

	questions := dto.ToPipelineQuestions(req.Questions)
	payload, ok := d.fallbackGenerate(ctx, genai.GenerateRequest{
		Prompt:          genai.BuildBatchPrompt(questions, req.Answers),
		Temperature:     0.4,
		TopK:            32,
		TopP:            1,
		MaxOutputTokens: 2048,
		Attempts:        1,
	})
	if !ok {
		return zeroBatch(req.Questions)
	}
	items := genai.ParseBatch(payload.Raw, questions)
	return joinBatch(questions, req.Answers, items)
}

// EvaluateEach grades every question as an independent single-text request,
// issuing the calls concurrently and joining results by question id. It is
// the client-side "single mode with multiple questions" loop.
func (d *Dispatcher) EvaluateEach(ctx context.Context, questions []dto.QuestionSpec, answers map[string]string) []dto.BatchItemResult {
	results := make([]dto.BatchItemResult, len(questions))

	var wg sync.WaitGroup
	for i, q := range questions {
		wg.Add(1)
		go func(i int, q dto.QuestionSpec) {
			defer wg.Done()
			single := d.EvaluateText(ctx, dto.SingleTextRequest{
				Question:      q.Text,
				ModelAnswer:   q.ModelAnswer,
				StudentAnswer: answers[q.ID],
				MaxMarks:      q.Marks,
			})
			results[i] = dto.BatchItemResult{
				QuestionID:   q.ID,
				Score:        single.Score,
				Improvements: single.Improvements,
				Feedback:     single.Feedback,
			}
		}(i, q)
	}
	wg.Wait()

	return results
}

// EvaluateImage grades photographed pages as one answer. Image modes have
// no local fallback; a backend failure yields a zero-score result.
func (d *Dispatcher) EvaluateImage(ctx context.Context, req dto.OCREvaluateRequest) dto.SingleImageResult {
	var result dto.SingleImageResult
	if err := d.post(ctx, "/api/v1/ocr-evaluate", req, &result); err == nil {
		return result
	} else {
		d.logger.Warn().Err(err).Msg("backend image evaluation failed")
	}

	maxMarks := req.MaxMarks
	if maxMarks <= 0 {
		maxMarks = 5
	}
	return dto.SingleImageResult{
		MaxMarks:     float64(maxMarks),
		Improvements: []string{"The evaluation service is unreachable."},
		Feedback:     "The system could not process the image. Please try again later.",
	}
}

// EvaluateFullSheet grades a photographed answer sheet.
func (d *Dispatcher) EvaluateFullSheet(ctx context.Context, req dto.OCREvaluateRequest) dto.FullSheetResult {
	req.Mode = dto.ModeFullSheet

	var result dto.FullSheetResult
	if err := d.post(ctx, "/api/v1/ocr-evaluate", req, &result); err == nil {
		return result
	} else {
		d.logger.Warn().Err(err).Msg("backend full-sheet evaluation failed")
	}

	out := dto.FullSheetResult{
		Results:         make([]dto.SheetItemResult, 0, len(req.Questions)),
		OverallFeedback: "Failed to process the answer sheet. Please try again later.",
	}
	for i, q := range req.Questions {
		marks := q.Marks
		if marks <= 0 {
			marks = 5
		}
		out.Results = append(out.Results, dto.SheetItemResult{
			QuestionID:     q.ID,
			QuestionNumber: i + 1,
			MaxMarks:       float64(marks),
			Improvements:   []string{"The evaluation service is unreachable."},
			Feedback:       "Could not process the answer sheet.",
		})
		out.TotalMaxMarks += float64(marks)
	}
	return out
}

type backendError struct {
	status int
	body   string
}

func (e *backendError) Error() string {
	return fmt.Sprintf("backend returned %d %s", e.status, e.body)
}

func (d *Dispatcher) post(ctx context.Context, path string, body, out any) error {
	resp, err := d.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &backendError{status: resp.StatusCode(), body: resp.Status()}
	}
	return nil
}

// fallbackPayload carries both the raw completion (for batch parsing) and
// the single-shape parse of it.
type fallbackPayload struct {
	Raw string
	genai.ScorePayload
}

// fallbackGenerate runs the prompt against the model directly using the
// operator credential. A key the model rejects as invalid is purged so the
// operator is asked again next time.
func (d *Dispatcher) fallbackGenerate(ctx context.Context, req genai.GenerateRequest) (fallbackPayload, bool) {
	if d.backendOnly {
		return fallbackPayload{}, false
	}

	key, err := d.resolveKey()
	if err != nil {
		d.logger.Warn().Err(err).Msg("no fallback credential available")
		return fallbackPayload{}, false
	}

	gateway := genai.NewGeminiGateway(genai.GeminiConfig{
		APIKey:  key,
		BaseURL: d.modelBaseURL,
		Timeout: d.timeout,
		Logger:  d.logger,
	})
	raw, err := gateway.Generate(ctx, req)
	if err != nil {
		if genai.IsInvalidCredential(err) && d.credentials != nil {
			d.logger.Warn().Msg("stored credential rejected, purging")
			_ = d.credentials.Purge()
		} else {
			d.logger.Warn().Err(err).Msg("fallback model call failed")
		}
		return fallbackPayload{}, false
	}

	return fallbackPayload{Raw: raw, ScorePayload: genai.ParseSingle(raw)}, true
}

func (d *Dispatcher) resolveKey() (string, error) {
	if d.credentials != nil {
		if key, err := d.credentials.Load(); err == nil {
			return key, nil
		}
	}
	if d.promptKey == nil {
		return "", ErrNoCredential
	}

	key, err := d.promptKey()
	if err != nil {
		return "", err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrNoCredential
	}
	if d.credentials != nil {
		_ = d.credentials.Save(key)
	}
	return key, nil
}

func clamp(score, max float64) float64 {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}

func zeroBatch(questions []dto.QuestionSpec) []dto.BatchItemResult {
	results := make([]dto.BatchItemResult, 0, len(questions))
	for _, q := range questions {
		results = append(results, dto.BatchItemResult{
			QuestionID:   q.ID,
			Improvements: []string{"The evaluation service is unreachable."},
			Feedback:     "Unable to grade this answer at the moment. Please try again later.",
		})
	}
	return results
}

func joinBatch(questions []genai.Question, answers map[string]string, items []genai.BatchItemPayload) []dto.BatchItemResult {
	byID := make(map[string]genai.BatchItemPayload, len(items))
	for _, item := range items {
		if _, seen := byID[item.QuestionID]; !seen {
			byID[item.QuestionID] = item
		}
	}

	results := make([]dto.BatchItemResult, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(answers[q.ID]) == "" {
			results = append(results, dto.BatchItemResult{
				QuestionID:   q.ID,
				Improvements: []string{"Attempt the question to receive feedback."},
				Feedback:     "No answer was provided for this question.",
			})
			continue
		}

		item, ok := byID[q.ID]
		if !ok {
			results = append(results, dto.BatchItemResult{
				QuestionID:   q.ID,
				Improvements: []string{},
				Feedback:     "The evaluation response did not include this question.",
			})
			continue
		}

		improvements := item.Improvements
		if improvements == nil {
			improvements = []string{}
		}
		results = append(results, dto.BatchItemResult{
			QuestionID:   q.ID,
			Score:        clamp(item.Score, float64(q.Marks)),
			Improvements: improvements,
			Feedback:     item.Feedback,
		})
	}
	return results
}
