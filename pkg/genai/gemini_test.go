package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func geminiCompletion(text string) string {
	body := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func TestGeminiGatewayGenerate(t *testing.T) {
	var gotPath string
	var gotBody geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geminiCompletion(`{"score": 3}`)))
	}))
	defer server.Close()

	gateway := NewGeminiGateway(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})

	out, err := gateway.Generate(context.Background(), GenerateRequest{
		Prompt:          "grade this",
		Temperature:     0.4,
		TopK:            32,
		TopP:            1,
		MaxOutputTokens: 512,
	})
	require.NoError(t, err)
	require.Equal(t, `{"score": 3}`, out)

	require.Equal(t, "/v1beta/models/gemini-1.5-flash-latest:generateContent", gotPath)
	require.Len(t, gotBody.Contents, 1)
	require.Equal(t, "grade this", gotBody.Contents[0].Parts[0].Text)
	require.Len(t, gotBody.SafetySettings, 4)
	require.Equal(t, float32(0.4), gotBody.GenerationConfig.Temperature)
}

func TestGeminiGatewayVisionModelForImages(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// Image parts precede the text part.
		require.Len(t, body.Contents[0].Parts, 2)
		require.NotNil(t, body.Contents[0].Parts[0].InlineData)
		require.Equal(t, "prompt", body.Contents[0].Parts[1].Text)
		_, _ = w.Write([]byte(geminiCompletion("ok")))
	}))
	defer server.Close()

	gateway := NewGeminiGateway(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := gateway.Generate(context.Background(), GenerateRequest{
		Prompt: "prompt",
		Images: []ImagePart{{Data: "aGVsbG8=", MimeType: "image/png"}},
	})
	require.NoError(t, err)
	require.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)
}

func TestGeminiGatewayRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(geminiCompletion(`{"score": 5}`)))
	}))
	defer server.Close()

	gateway := NewGeminiGateway(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})

	out, err := gateway.Generate(context.Background(), GenerateRequest{Prompt: "grade", Attempts: 2})
	require.NoError(t, err)
	require.Equal(t, `{"score": 5}`, out)
	require.Equal(t, int32(2), calls.Load())
}

func TestGeminiGatewaySingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "overloaded"}`))
	}))
	defer server.Close()

	gateway := NewGeminiGateway(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := gateway.Generate(context.Background(), GenerateRequest{Prompt: "grade"})
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())

	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, http.StatusServiceUnavailable, ge.StatusCode)
	require.Contains(t, ge.Body, "overloaded")
}

func TestGeminiGatewayMissingKeyMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	gateway := NewGeminiGateway(GeminiConfig{BaseURL: server.URL})

	_, err := gateway.Generate(context.Background(), GenerateRequest{Prompt: "grade"})
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.Zero(t, calls.Load())
}

func TestGeminiGatewayEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	gateway := NewGeminiGateway(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := gateway.Generate(context.Background(), GenerateRequest{Prompt: "grade"})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrMissingAPIKey))
}

func TestIsInvalidCredential(t *testing.T) {
	require.True(t, IsInvalidCredential(&GatewayError{StatusCode: 400}))
	require.True(t, IsInvalidCredential(&GatewayError{StatusCode: 401}))
	require.True(t, IsInvalidCredential(&GatewayError{StatusCode: 403}))
	require.False(t, IsInvalidCredential(&GatewayError{StatusCode: 503}))
	require.False(t, IsInvalidCredential(errors.New("plain")))
}
