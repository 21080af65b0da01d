package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/markwise/markwise-api/internal/config"
	"github.com/markwise/markwise-api/internal/handler"
	"github.com/markwise/markwise-api/internal/middleware"
	"github.com/markwise/markwise-api/internal/router"
	"github.com/markwise/markwise-api/internal/service"
	"github.com/markwise/markwise-api/pkg/genai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	gateway := buildGateway(cfg, logger)
	validate := validator.New(validator.WithRequiredStructEnabled())

	evaluationService := service.NewEvaluationService(gateway, validate, logger)

	evaluateHandler := handler.NewEvaluateHandler(evaluationService, logger)
	ocrEvaluateHandler := handler.NewOCREvaluateHandler(evaluationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    32 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		EvaluateHandler:    evaluateHandler,
		OCREvaluateHandler: ocrEvaluateHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildGateway(cfg config.Config, logger zerolog.Logger) genai.Gateway {
	switch cfg.AIProvider {
	case "openai":
		return genai.NewOpenAIGateway(genai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  logger,
		})
	default:
		return genai.NewGeminiGateway(genai.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			TextModel:   cfg.GeminiTextModel,
			VisionModel: cfg.GeminiVisionModel,
			BaseURL:     cfg.GeminiBaseURL,
			Timeout:     cfg.ModelTimeout,
			Logger:      logger,
		})
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
