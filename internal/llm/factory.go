package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/seenimoa/finboard/internal/config"
)

// Driver names accepted in llm.driver.
const (
	DriverHTTP = "http"
	DriverSDK  = "sdk"
)

// NewProviderFromConfig builds the backend driver selected by cfg.LLM.Driver.
// The provider's default model is cfg.LLM.Model; callers pick the detail
// model per request through ChatOptions.
func NewProviderFromConfig(ctx context.Context, cfg *config.Config) (LLMProvider, error) {
	return newProvider(ctx, cfg, nil)
}

func newProvider(ctx context.Context, cfg *config.Config, client *http.Client) (LLMProvider, error) {
	if cfg.LLM.GeminiKey == "" {
		return nil, ErrNoAPIKey
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Driver)) {
	case "", DriverHTTP:
		opts := []GeminiOption{WithGeminiModel(cfg.LLM.Model)}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, WithGeminiBaseURL(cfg.LLM.BaseURL))
		}
		if client != nil {
			opts = append(opts, WithGeminiHTTPClient(client))
		}
		return NewGeminiProvider(cfg.LLM.GeminiKey, opts...)

	case DriverSDK:
		opts := []GenAIOption{WithGenAIModel(cfg.LLM.Model)}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, WithGenAIBaseURL(cfg.LLM.BaseURL))
		}
		if client != nil {
			opts = append(opts, WithGenAIHTTPClient(client))
		}
		return NewGenAIProvider(ctx, cfg.LLM.GeminiKey, opts...)

	default:
		return nil, fmt.Errorf("%w: %q (want %q or %q)", ErrUnknownDriver, cfg.LLM.Driver, DriverHTTP, DriverSDK)
	}
}
