package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/markwise/markwise-api/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "Markwise API", cfg.AppName)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, "gemini", cfg.AIProvider)
	require.Equal(t, "gemini-1.5-flash-latest", cfg.GeminiTextModel)
	require.Equal(t, "gemini-2.5-flash", cfg.GeminiVisionModel)
	require.Equal(t, 30*time.Second, cfg.ModelTimeout)
}

func TestLoadReadsCanonicalKeyName(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "canonical")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "canonical", cfg.GeminiAPIKey)
}

func TestLoadAcceptsAlternateKeyNames(t *testing.T) {
	t.Setenv("GEMINI_API", "alternate")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "alternate", cfg.GeminiAPIKey)

	t.Setenv("GEMINI_KEY", "typo-name")
	t.Setenv("GEMINI_API", "")
	cfg, err = config.Load()
	require.NoError(t, err)
	require.Equal(t, "typo-name", cfg.GeminiAPIKey)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "watson")

	_, err := config.Load()
	require.Error(t, err)
}

func TestHTTPAddress(t *testing.T) {
	require.Equal(t, ":8080", config.Config{AppPort: "8080"}.HTTPAddress())
	require.Equal(t, ":9000", config.Config{AppPort: ":9000"}.HTTPAddress())
}
