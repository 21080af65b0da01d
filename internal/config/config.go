package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	AIProvider        string
	GeminiAPIKey      string
	GeminiTextModel   string
	GeminiVisionModel string
	GeminiBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	ModelTimeout      time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Markwise API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("gemini.text_model", "gemini-1.5-flash-latest")
	v.SetDefault("gemini.vision_model", "gemini-2.5-flash")
	v.SetDefault("model_timeout_ms", 30000)

	// The key is historically accepted under three names.
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "GEMINI_API", "GEMINI_KEY")
	_ = v.BindEnv("gemini.base_url", "GEMINI_BASE_URL")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.model", "OPENAI_MODEL")
	_ = v.BindEnv("openai.base_url", "OPENAI_BASE_URL")

	timeoutMs := v.GetInt("model_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		AIProvider:        strings.ToLower(v.GetString("ai.provider")),
		GeminiAPIKey:      v.GetString("gemini.api_key"),
		GeminiTextModel:   v.GetString("gemini.text_model"),
		GeminiVisionModel: v.GetString("gemini.vision_model"),
		GeminiBaseURL:     v.GetString("gemini.base_url"),
		OpenAIAPIKey:      v.GetString("openai.api_key"),
		OpenAIModel:       v.GetString("openai.model"),
		OpenAIBaseURL:     v.GetString("openai.base_url"),
		ModelTimeout:      time.Duration(timeoutMs) * time.Millisecond,
	}

	switch cfg.AIProvider {
	case "gemini", "openai":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider: %q", cfg.AIProvider)
	}

	return cfg, nil
}
