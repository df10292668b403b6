package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/conceptgraph/pkg/alert"
	"github.com/soundprediction/conceptgraph/pkg/config"
)

// Provider names accepted in nlp.provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options controls the wrappers New places around the base client.
type Options struct {
	CircuitBreaker config.CircuitBreakerConfig
	Alerter        alert.Alerter
	Logger         *slog.Logger

	// TokenUsageDir enables Parquet token accounting when set.
	TokenUsageDir string
}

// New builds the configured provider client wrapped, innermost first, with
// retry, circuit breaking and token tracking.
func New(ctx context.Context, cfg config.NLPConfig, opts Options) (Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var base Client
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		c, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		base = c
	case ProviderOpenAI:
		c, err := NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		base = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	retryCfg := DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.MaxRetries
	var client Client = NewRetryClient(base, retryCfg, logger)

	if opts.CircuitBreaker.Enabled {
		name := "nlp-" + strings.ToLower(cfg.Provider)
		if cfg.Provider == "" {
			name = "nlp-" + ProviderGemini
		}
		client = NewCircuitBreakerClient(client, opts.CircuitBreaker, opts.Alerter, name, logger)
	}

	if opts.TokenUsageDir != "" {
		tracker, err := NewTokenTracker(opts.TokenUsageDir)
		if err != nil {
			return nil, err
		}
		client = NewTokenTrackingClient(client, tracker, logger)
	}

	logger.Info("Language model client ready",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"circuit_breaker", opts.CircuitBreaker.Enabled)
	return client, nil
}
