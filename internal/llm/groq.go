// =============================================================================
// AIMsi to CAPSS Converter - Groq Provider
// =============================================================================

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
	groqModel   = "llama-3.1-8b-instant"
)

// GroqClient calls Groq's OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewGroqClient(cfg Config, logger *slog.Logger) *GroqClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = groqBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = groqModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GroqClient{cfg: cfg, http: newHTTPClient(cfg.Timeout), log: logger}
}

func (c *GroqClient) InferBrand(ctx context.Context, description string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{"role": "user", "content": groqPrompt(description)},
		},
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := SendJSON(ctx, c.http, rid, endpoint, body, headers, c.log)
	if err != nil {
		return "", fmt.Errorf("groq: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("groq: decode response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("groq: no choices in response")
	}

	answer := cc.Choices[0].Message.Content
	c.log.Debug("llm.groq.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"status", status,
		"answer", answer,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}
