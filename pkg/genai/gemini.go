package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiConfig configures the Gemini REST gateway.
type GeminiConfig struct {
	APIKey      string
	TextModel   string
	VisionModel string
	// BaseURL overrides the Google endpoint, used in tests.
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// GeminiGateway calls the Gemini generateContent REST endpoint.
type GeminiGateway struct {
	client      *resty.Client
	apiKey      string
	textModel   string
	visionModel string
	logger      zerolog.Logger
}

// NewGeminiGateway builds the gateway. An empty API key is allowed here;
// Generate reports ErrMissingAPIKey before any network call instead, so the
// server can still boot and answer with a configuration error.
func NewGeminiGateway(cfg GeminiConfig) *GeminiGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-1.5-flash-latest"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gemini-2.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &GeminiGateway{
		client:      client,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		textModel:   cfg.TextModel,
		visionModel: cfg.VisionModel,
		logger:      cfg.Logger.With().Str("component", "gemini_gateway").Logger(),
	}
}

// Provider identifies the gateway implementation.
func (g *GeminiGateway) Provider() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float32 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends one generateContent call, retrying per req.Attempts.
func (g *GeminiGateway) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if g.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	model := g.textModel
	parts := make([]geminiPart, 0, len(req.Images)+1)
	if len(req.Images) > 0 {
		model = g.visionModel
		for _, img := range req.Images {
			mime := img.MimeType
			if mime == "" {
				mime = "image/jpeg"
			}
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mime, Data: img.Data}})
		}
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	body := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			TopK:            req.TopK,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxOutputTokens,
		},
		SafetySettings: []geminiSafetySetting{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
			{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
			{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
		},
	}

	attempts := req.Attempts
	if attempts == 0 {
		attempts = 1
	}

	var completion string
	err := retry.Do(
		func() error {
			text, err := g.call(ctx, model, body)
			if err != nil {
				return err
			}
			completion = text
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(300*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return completion, nil
}

func (g *GeminiGateway) call(ctx context.Context, model string, body geminiRequest) (string, error) {
	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", model))

	modelCallDuration.WithLabelValues("gemini", model).Observe(time.Since(start).Seconds())

	if err != nil {
		modelCallFailures.WithLabelValues("gemini", model).Inc()
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	raw := resp.Body()
	if resp.IsError() {
		modelCallFailures.WithLabelValues("gemini", model).Inc()
		g.logger.Warn().Int("status", resp.StatusCode()).Str("model", model).Msg("gemini call failed")
		return "", &GatewayError{StatusCode: resp.StatusCode(), Body: string(raw)}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		modelCallFailures.WithLabelValues("gemini", model).Inc()
		return "", fmt.Errorf("gemini generate: decode response: %w", err)
	}

	text := firstCandidateText(parsed)
	if strings.TrimSpace(text) == "" {
		modelCallFailures.WithLabelValues("gemini", model).Inc()
		return "", fmt.Errorf("gemini generate: empty model response")
	}
	return text, nil
}

func firstCandidateText(resp geminiResponse) string {
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}
