package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultModel      = "gemini-3-flash-preview"
	DefaultTimeout    = 60 * time.Second
	defaultAPIVersion = "v1beta"
)

// ErrEmptyResponse модель не вернула ни одного кандидата с текстом.
var ErrEmptyResponse = errors.New("gemini returned no text")

// Config параметры клиента Gemini.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // запросов в секунду, <= 0 без ограничения
}

// Client вызывает generateContent через SDK genai.
type Client struct {
	cfg     Config
	models  *genai.Models
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// NewClient создаёт клиент с ограничителем частоты и автоматическим выключателем.
func NewClient(ctx context.Context, cfg Config, logger *logrus.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithFields(logrus.Fields{"component": "gemini", "model": cfg.Model})

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL + "/",
			APIVersion: defaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		cfg:     cfg,
		models:  sdk.Models,
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "Gemini",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
			},
		}),
		log: log,
	}, nil
}

// Generate выполняет один запрос без стриминга и возвращает текст ответа.
func (c *Client) Generate(ctx context.Context, req entity.GenerateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generate(ctx, req)
	})
	if err != nil {
		c.log.WithError(err).WithField("breaker", c.State().String()).Warn("generateContent failed")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("gemini unavailable (circuit breaker open): %w", err)
		}
		return "", err
	}

	return result.(string), nil
}

func (c *Client) generate(ctx context.Context, req entity.GenerateRequest) (string, error) {
	contents, err := toContents(req)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, toConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}

	c.log.WithField("duration", time.Since(start).String()).Debug("generateContent finished")
	return responseText(resp)
}

// State состояние выключателя для логов.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

var _ port.Generator = (*Client)(nil)
