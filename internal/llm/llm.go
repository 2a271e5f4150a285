// =============================================================================
// AIMsi to CAPSS Converter - Brand Inference Client
// =============================================================================
//
// PROVIDERS:
//   - groq:   OpenAI-compatible chat completions, bearer token
//   - gemini: generateContent, key in the x-goog-api-key header
//
// Both share SendJSON (http.go) and the prompts in prompt.go.
//
// =============================================================================

// Package llm asks a hosted language model for the brand named in an item
// description. Two providers are supported: Groq (OpenAI-compatible chat
// completions) and Google Gemini.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds one inference call.
const DefaultTimeout = 5 * time.Second

// Sampling parameters shared by both providers. The answer is a single short
// name, so output is capped hard.
const (
	temperature = 0.1
	maxTokens   = 20
)

// Providers.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// Config for a provider client.
type Config struct {
	Provider string        // groq or gemini
	APIKey   string        // required
	BaseURL  string        // provider API root; default per provider
	Model    string        // default per provider
	Timeout  time.Duration // per-call; default DefaultTimeout
}

// BrandInferer returns the model's raw answer for one description.
type BrandInferer interface {
	InferBrand(ctx context.Context, description string) (string, error)
}

// New builds the client for cfg.Provider.
func New(cfg Config, logger *slog.Logger) (BrandInferer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderGroq:
		return NewGroqClient(cfg, logger), nil
	case ProviderGemini:
		return NewGeminiClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
