package vlm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"entomo/internal/config"
	"entomo/internal/logging"
)

// ErrNotConfigured is returned when the selected backend is missing required settings.
var ErrNotConfigured = errors.New("vision-language model not configured")

// Model generates free text for a prompt and a single image.
type Model interface {
	Generate(ctx context.Context, prompt string, img Image) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, prompt string, img Image) (string, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, prompt string, img Image) (string, error) {
	return f(ctx, prompt, img)
}

// New constructs the backend named by cfg.Provider.
func New(ctx context.Context, cfg config.VLM, logger *slog.Logger) (Model, error) {
	logger = logging.NewComponentLogger(logger, "vlm")
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderOpenAI, "":
		client := NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, WithRetryMaxAttempts(cfg.RetryAttempts))
		logger.Info("vision-language model ready",
			logging.String("provider", config.ProviderOpenAI),
			logging.String("model", cfg.Model),
		)
		return client, nil
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			TimeoutSeconds: cfg.TimeoutSeconds,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("vision-language model ready",
			logging.String("provider", config.ProviderGemini),
			logging.String("model", cfg.Model),
		)
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.Provider)
	}
}
