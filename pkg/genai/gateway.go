// Package genai contains the building blocks of the answer-evaluation
// pipeline: prompt construction, the gateway to the generative model, and
// parsing of the model's JSON completions.
package genai

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ImagePart is a single base64-encoded page attached to a vision request.
type ImagePart struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// GenerateRequest describes one call to the generative model.
type GenerateRequest struct {
	Prompt          string
	Images          []ImagePart
	Temperature     float32
	TopK            int
	TopP            float32
	MaxOutputTokens int
	// Attempts is the total number of tries, including the first one.
	// Zero means a single attempt.
	Attempts uint
}

// Gateway sends a prompt (optionally with image parts) to a generative
// model and returns the raw textual completion.
type Gateway interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Provider() string
}

// ErrMissingAPIKey indicates the gateway has no credential configured.
// It is checked before any network call is made.
var ErrMissingAPIKey = errors.New("missing API key")

// GatewayError carries the HTTP status and raw body of a failed model call.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("model endpoint returned %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// IsInvalidCredential reports whether the error means the supplied API key
// was rejected by the model endpoint, as opposed to a transient failure.
func IsInvalidCredential(err error) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	switch ge.StatusCode {
	case 400, 401, 403:
		return true
	}
	return false
}

// truncate cuts s to at most n bytes, backing up to a rune boundary so
// multi-byte model output is never split mid-sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
