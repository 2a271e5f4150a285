// =============================================================================
// AIMsi to CAPSS Converter - CAPSS Upload Client
// =============================================================================
//
// This module submits a finished upload document to the CAPSS bulk upload API.
//
// UPLOAD SEQUENCE:
//   1. Obtain a bearer token (OAuth2 client credentials, scope "api")
//   2. POST the document as the multipart field "bulkUploadFile"
//   3. Expect 202 Accepted with a submission id and a status link
//   4. Poll the status link until the submission completes
//
// OUTCOMES:
//   Every failure wraps exactly one sentinel so callers can tell them apart:
//   ErrAuthentication, ErrSubmissionRejected, ErrStatusCheck, ErrPollTimeout.
//
// =============================================================================

package capss

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	ErrAuthentication     = errors.New("capss: authentication failed")
	ErrSubmissionRejected = errors.New("capss: submission rejected")
	ErrStatusCheck        = errors.New("capss: status check failed")
	ErrPollTimeout        = errors.New("capss: submission not complete after polling")
)

// Defaults match the production CAPSS endpoints.
const (
	DefaultTokenURL     = "https://capss.doj.ca.gov/oauth/token"
	DefaultUploadURL    = "https://capss.doj.ca.gov/api/bulkupload/save"
	DefaultPollAttempts = 10
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 60 * time.Second

	// FileField is the multipart field name of the document.
	FileField = "bulkUploadFile"

	StatusComplete = "complete"
)

// terminalStatuses end polling with ErrSubmissionRejected.
var terminalStatuses = map[string]bool{
	"failed":   true,
	"error":    true,
	"rejected": true,
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the upload endpoints, credentials and polling limits.
type Config struct {
	TokenURL     string
	UploadURL    string
	ClientID     string
	ClientSecret string

	PollAttempts int
	PollInterval time.Duration

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// Result describes an accepted submission.
type Result struct {
	SubmissionID string
	StatusURL    string

	// Status is the last status reported by the status link.
	Status string

	// Confirmed is false when CAPSS accepted the file but returned no
	// status link to confirm processing.
	Confirmed bool

	// Polls is the number of status requests made.
	Polls int
}

// Client uploads documents to CAPSS. It is safe for sequential reuse.
type Client struct {
	cfg    Config
	oauth  clientcredentials.Config
	base   *http.Client
	logger *slog.Logger
}

// NewClient validates cfg, fills defaults and builds the client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", ErrAuthentication)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		cfg: cfg,
		oauth: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       []string{"api"},
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		base:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger: logger,
	}, nil
}

// =============================================================================
// UPLOAD
// =============================================================================

// Upload submits the document at path and waits for CAPSS to process it.
//
// RETURNS:
//   - The submission result when CAPSS accepted (and, if it offered a status
//     link, completed) the submission.
//   - An error wrapping one of the package sentinels otherwise. Local file
//     errors are returned unwrapped.
func (c *Client) Upload(ctx context.Context, path string) (*Result, error) {
	logger := c.logger.With("req_id", uuid.NewString(), "file", path)

	body, contentType, err := multipartBody(path)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 1: TOKEN
	// =========================================================================

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, c.base)
	source := c.oauth.TokenSource(tokenCtx)
	token, err := source.Token()
	if err != nil {
		logger.Error("capss.token.failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	logger.Info("capss.token.ok", "expires", token.Expiry)

	client := oauth2.NewClient(tokenCtx, oauth2.ReuseTokenSource(token, source))
	client.Timeout = c.cfg.Timeout

	// =========================================================================
	// STEP 2: SUBMIT
	// =========================================================================

	result, err := c.submit(ctx, client, body, contentType)
	if err != nil {
		logger.Error("capss.upload.failed", "error", err)
		return nil, err
	}
	logger.Info("capss.upload.accepted",
		"submission_id", result.SubmissionID,
		"status_url", result.StatusURL,
	)

	if result.StatusURL == "" {
		logger.Warn("capss.upload.unconfirmed", "submission_id", result.SubmissionID)
		return result, nil
	}

	// =========================================================================
	// STEP 3: POLL
	// =========================================================================

	if err := c.poll(ctx, client, result, logger); err != nil {
		logger.Error("capss.status.failed", "error", err, "polls", result.Polls)
		return result, err
	}

	logger.Info("capss.upload.complete",
		"submission_id", result.SubmissionID,
		"polls", result.Polls,
	)
	return result, nil
}

func multipartBody(path string) ([]byte, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(FileField, filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("read upload file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

type submitResponse struct {
	Submission struct {
		SubmissionID json.RawMessage `json:"submissionId"`
	} `json:"submission"`
	Links struct {
		Href string `json:"href"`
	} `json:"links"`
}

func (c *Client) submit(ctx context.Context, client *http.Client, body []byte, contentType string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: upload HTTP %d: %s", ErrAuthentication, resp.StatusCode, snippet(raw))
	case resp.StatusCode != http.StatusAccepted:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrSubmissionRejected, resp.StatusCode, snippet(raw))
	}

	var sr submitResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("%w: unreadable acceptance: %v", ErrSubmissionRejected, err)
	}

	result := &Result{SubmissionID: strings.Trim(string(sr.Submission.SubmissionID), `"`)}
	if sr.Links.Href != "" {
		statusURL, err := c.resolve(sr.Links.Href)
		if err != nil {
			return nil, fmt.Errorf("%w: bad status link %q: %v", ErrStatusCheck, sr.Links.Href, err)
		}
		result.StatusURL = statusURL
	}
	return result, nil
}

// resolve makes a relative status link absolute against the upload URL.
func (c *Client) resolve(href string) (string, error) {
	base, err := url.Parse(c.cfg.UploadURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) poll(ctx context.Context, client *http.Client, result *Result, logger *slog.Logger) error {
	for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		result.Polls = attempt
		status, done, err := c.checkStatus(ctx, client, result.StatusURL)
		if err != nil {
			return err
		}
		result.Status = status
		logger.Debug("capss.status.poll", "attempt", attempt, "status", status)

		if done {
			result.Confirmed = true
			return nil
		}
	}
	return fmt.Errorf("%w: %d attempts, last status %q", ErrPollTimeout, c.cfg.PollAttempts, result.Status)
}

// checkStatus performs one status request. done is true once the submission
// is complete.
func (c *Client) checkStatus(ctx context.Context, client *http.Client, statusURL string) (status string, done bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, fmt.Errorf("%w: %v", ErrStatusCheck, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusAccepted:
		return "pending", false, nil
	case http.StatusOK:
	default:
		return "", false, fmt.Errorf("%w: HTTP %d: %s", ErrStatusCheck, resp.StatusCode, snippet(raw))
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false, fmt.Errorf("%w: unreadable status: %v", ErrStatusCheck, err)
	}

	status = strings.ToLower(strings.TrimSpace(body.Status))
	switch {
	case status == StatusComplete:
		return status, true, nil
	case terminalStatuses[status]:
		return status, false, fmt.Errorf("%w: status %q", ErrSubmissionRejected, body.Status)
	}
	return status, false, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// Upload outcomes.
const (
	OutcomeComplete       = "complete"
	OutcomeUnconfirmed    = "unconfirmed"
	OutcomeAuthentication = "authentication"
	OutcomeRejected       = "rejected"
	OutcomeStatusCheck    = "status_check"
	OutcomePollTimeout    = "poll_timeout"
	OutcomeCancelled      = "cancelled"
	OutcomeError          = "error"
)

// Outcome labels an Upload result for metrics and exit messages.
func Outcome(result *Result, err error) string {
	switch {
	case err == nil && result != nil && !result.Confirmed:
		return OutcomeUnconfirmed
	case err == nil:
		return OutcomeComplete
	case errors.Is(err, ErrAuthentication):
		return OutcomeAuthentication
	case errors.Is(err, ErrSubmissionRejected):
		return OutcomeRejected
	case errors.Is(err, ErrStatusCheck):
		return OutcomeStatusCheck
	case errors.Is(err, ErrPollTimeout):
		return OutcomePollTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	}
	return OutcomeError
}
