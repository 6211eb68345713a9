package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ddreport/internal/errors"
	"ddreport/ports"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	// DefaultBaseURL is DashScope's OpenAI-compatible endpoint
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel   = "qwen-turbo"
	DefaultTimeout = 120 * time.Second

	DefaultGeminiModel = "gemini-2.5-flash"
)

// DefaultModelFor returns the model used when none is configured
func DefaultModelFor(provider string) string {
	if strings.EqualFold(strings.TrimSpace(provider), ProviderGemini) {
		return DefaultGeminiModel
	}
	return DefaultModel
}

// Config holds LLM adapter configuration
type Config struct {
	Provider    string        // "openai" (any OpenAI-compatible endpoint) or "gemini"
	Model       string        // e.g. "qwen-turbo"
	APIKey      string        // required, never defaulted
	BaseURL     string        // optional endpoint override for either provider
	Temperature float64       // 0.0-1.0, lower = more deterministic
	MaxTokens   int           // max tokens in response
	Timeout     time.Duration // per-request timeout
}

// NewClient builds the text generator named by cfg.Provider
func NewClient(ctx context.Context, cfg Config) (ports.TextGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.ConfigInvalid("LLM API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderGemini:
		client, err := newGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown LLM provider %q", cfg.Provider))
	}
}
