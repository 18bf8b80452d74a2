package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/serene-care/backend/internal/config"
	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
)

// Provider is one upstream completion API. Implementations translate the
// directive and history into their own wire shape and return the reply text,
// which may be empty when the upstream produced nothing usable.
type Provider interface {
	Name() string
	Complete(ctx context.Context, directive string, history []chat.Turn) (string, error)
}

// GenerationConfig is the fixed sampling setup sent with every request.
type GenerationConfig struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// ConfigError reports a deployment fault detected before any outbound call.
type ConfigError struct {
	Provider string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Missing %s API key", e.Provider)
}

// UpstreamError is a non-success HTTP status from the upstream API. Body
// holds the raw response text for diagnosis.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s upstream call failed: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("%s upstream returned status %d", e.Provider, e.Status)
}

// NewProvider builds the single provider selected by configuration.
func NewProvider(ctx context.Context, cfg config.ProviderConfig) (Provider, error) {
	gen := GenerationConfig{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	}

	switch cfg.Name {
	case config.ProviderGemini:
		return NewGemini(GeminiConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Generation: gen,
			Timeout:    cfg.Timeout,
		}), nil
	case config.ProviderPerplexity:
		return NewPerplexity(PerplexityConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Generation: gen,
			Timeout:    cfg.Timeout,
		}), nil
	case config.ProviderArk:
		return NewArk(ctx, cfg, gen)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
