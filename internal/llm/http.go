// =============================================================================
// AIMsi to CAPSS Converter - LLM HTTP Transport
// =============================================================================
//
// SendJSON is the single HTTP path for both providers. Every call carries
// the caller's request id, so the transport events and the provider's result
// event share one req_id.
//
// SECRETS:
//   Endpoints are logged and returned only after redact() removes the query
//   string. Transport errors (*url.Error) embed the request URL, so it is
//   redacted before the error is logged or returned.
//
// =============================================================================

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// SendJSON posts body as JSON to endpoint and returns the raw response body.
// Non-2xx responses return the body together with an error. An empty reqID
// gets a fresh one.
func SendJSON(ctx context.Context, client *http.Client, reqID, endpoint string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		err = redactError(err)
		logger.Error("llm.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("llm.http.request",
		"req_id", reqID,
		"url", redact(endpoint),
		"content_length", len(bs),
	)

	resp, err := client.Do(req)
	if err != nil {
		err = redactError(err)
		logger.Warn("llm.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("llm.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	logger.Debug("llm.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

// redact drops the query string.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// redactError strips the query string from a *url.Error in err's chain.
func redactError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redact(ue.URL)
	}
	return err
}
