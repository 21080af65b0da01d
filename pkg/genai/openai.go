package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible gateway.
type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL points the client at an OpenAI-compatible endpoint.
	BaseURL string
	Logger  zerolog.Logger
}

// OpenAIGateway implements Gateway against the chat completion API. It is
// the alternate provider; deployments select it with ai.provider=openai.
type OpenAIGateway struct {
	client *openai.Client
	apiKey string
	model  string
	logger zerolog.Logger
}

// NewOpenAIGateway builds the gateway. As with Gemini, an empty key is
// reported per call rather than at construction time.
func NewOpenAIGateway(cfg OpenAIConfig) *OpenAIGateway {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIGateway{
		client: openai.NewClientWithConfig(clientCfg),
		apiKey: strings.TrimSpace(cfg.APIKey),
		model:  cfg.Model,
		logger: cfg.Logger.With().Str("component", "openai_gateway").Logger(),
	}
}

// Provider identifies the gateway implementation.
func (g *OpenAIGateway) Provider() string { return "openai" }

// Generate sends one chat completion call, retrying per req.Attempts.
func (g *OpenAIGateway) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if g.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	message := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		message.Content = req.Prompt
	} else {
		parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
		for _, img := range req.Images {
			mime := img.MimeType
			if mime == "" {
				mime = "image/jpeg"
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: fmt.Sprintf("data:%s;base64,%s", mime, img.Data)},
			})
		}
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: req.Prompt})
		message.MultiContent = parts
	}

	request := openai.ChatCompletionRequest{
		Model:          g.model,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxOutputTokens,
		Messages:       []openai.ChatCompletionMessage{message},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	attempts := req.Attempts
	if attempts == 0 {
		attempts = 1
	}

	var completion string
	err := retry.Do(
		func() error {
			start := time.Now()
			resp, err := g.client.CreateChatCompletion(ctx, request)
			modelCallDuration.WithLabelValues("openai", g.model).Observe(time.Since(start).Seconds())
			if err != nil {
				modelCallFailures.WithLabelValues("openai", g.model).Inc()
				return wrapOpenAIError(err)
			}
			if len(resp.Choices) == 0 {
				modelCallFailures.WithLabelValues("openai", g.model).Inc()
				return fmt.Errorf("openai generate: no choices returned")
			}
			completion = resp.Choices[0].Message.Content
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

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		return &GatewayError{StatusCode: apiErr.HTTPStatusCode, Body: body}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &GatewayError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return fmt.Errorf("openai generate: %w", err)
}
