package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"ivsite-bot/config"
	telegram "ivsite-bot/internal/api"
	app "ivsite-bot/internal/application"
	"ivsite-bot/internal/container"
	"ivsite-bot/internal/infrastructure/camera"
	"ivsite-bot/internal/infrastructure/gemini"
	"ivsite-bot/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger := config.NewLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Состояние операторов живёт только в памяти процесса
	operatorRepo := storage.NewMemoryOperatorRepository()

	generator, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:    cfg.GeminiAPIKey,
		Model:     cfg.GeminiModel,
		BaseURL:   cfg.GeminiBaseURL,
		Timeout:   cfg.GeminiTimeout,
		RateLimit: cfg.GeminiRateLimit,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create gemini client")
	}

	// Собираем сервисы приложения
	appContainer, err := container.New(container.Options{
		Operators: operatorRepo,
		Generator: generator,
		Camera:    camera.NewOpener(cfg.CameraBackDevice, cfg.CameraFallbackDevice),
		Acquisition: app.AcquisitionConfig{
			JPEGQuality:  cfg.JPEGQuality,
			AutoInterval: cfg.AutoCaptureInterval,
		},
		Language:  cfg.OutputLanguage,
		CacheSize: cfg.ClassifierCacheSize,
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to build container")
	}

	bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create bot")
	}

	logger.WithFields(logrus.Fields{
		"model":   cfg.GeminiModel,
		"breaker": generator.State().String(),
	}).Info("bot is running")
	if err := bot.Run(ctx); err != nil {
		logger.WithError(err).Fatal("bot error")
	}
	logger.Info("bot stopped")
}
