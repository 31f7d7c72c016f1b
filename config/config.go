package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken string

	GeminiAPIKey    string
	GeminiModel     string
	GeminiBaseURL   string
	GeminiTimeout   time.Duration
	GeminiRateLimit float64
	OutputLanguage  string

	CameraBackDevice     int
	CameraFallbackDevice int
	JPEGQuality          int
	AutoCaptureInterval  time.Duration

	ClassifierCacheSize int

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		TelegramToken:        v.GetString("TELEGRAM_TOKEN"),
		GeminiAPIKey:         v.GetString("GEMINI_API_KEY"),
		GeminiModel:          v.GetString("GEMINI_MODEL"),
		GeminiBaseURL:        v.GetString("GEMINI_BASE_URL"),
		GeminiTimeout:        v.GetDuration("GEMINI_TIMEOUT"),
		GeminiRateLimit:      v.GetFloat64("GEMINI_RATE_LIMIT"),
		OutputLanguage:       v.GetString("OUTPUT_LANGUAGE"),
		CameraBackDevice:     v.GetInt("CAMERA_BACK_DEVICE"),
		CameraFallbackDevice: v.GetInt("CAMERA_FALLBACK_DEVICE"),
		JPEGQuality:          v.GetInt("CAMERA_JPEG_QUALITY"),
		AutoCaptureInterval:  v.GetDuration("AUTO_CAPTURE_INTERVAL"),
		ClassifierCacheSize:  v.GetInt("CLASSIFIER_CACHE_SIZE"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GEMINI_MODEL", "gemini-3-flash-preview")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("GEMINI_TIMEOUT", "60s")
	v.SetDefault("GEMINI_RATE_LIMIT", 2)
	v.SetDefault("OUTPUT_LANGUAGE", "Russian")
	v.SetDefault("CAMERA_BACK_DEVICE", 1)
	v.SetDefault("CAMERA_FALLBACK_DEVICE", 0)
	v.SetDefault("CAMERA_JPEG_QUALITY", 85)
	v.SetDefault("AUTO_CAPTURE_INTERVAL", "4s")
	v.SetDefault("CLASSIFIER_CACHE_SIZE", 256)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Validate проверяет обязательные параметры.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("CAMERA_JPEG_QUALITY must be within 1..100, got %d", c.JPEGQuality)
	}
	if c.AutoCaptureInterval <= 0 {
		return fmt.Errorf("AUTO_CAPTURE_INTERVAL must be positive")
	}
	return nil
}
