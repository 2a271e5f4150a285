// =============================================================================
// AIMsi to CAPSS Converter - Gemini Provider
// =============================================================================

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-pro"
)

// GeminiClient calls the Gemini generateContent endpoint. The API key travels
// in the x-goog-api-key header, never in the URL.
type GeminiClient struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewGeminiClient(cfg Config, logger *slog.Logger) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = geminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{cfg: cfg, http: newHTTPClient(cfg.Timeout), log: logger}
}

func (c *GeminiClient) InferBrand(ctx context.Context, description string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": geminiPrompt(description)}}},
		},
		"generationConfig": map[string]any{
			"temperature":     temperature,
			"maxOutputTokens": maxTokens,
		},
	}

	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	raw, status, err := SendJSON(ctx, c.http, rid, endpoint, body, headers, c.log)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	var gr struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty candidates in response")
	}

	answer := gr.Candidates[0].Content.Parts[0].Text
	c.log.Debug("llm.gemini.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"status", status,
		"answer", answer,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}
