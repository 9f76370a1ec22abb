// Package httpapi implements the repository ports against the backend's
// JSON-over-HTTP API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/clock"
	"inkwell/internal/domain"
	"inkwell/internal/httputil"
	"inkwell/internal/metrics"
	"inkwell/internal/repository/httpapi/sse"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 10 << 20

// Config holds everything needed to talk to the backend
type Config struct {
	BaseURL    string
	Tokens     auth.TokenSource
	HTTPClient *http.Client // nil uses a client with a 30s timeout
	MaxRetries int
	SSE        *sse.Config
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Client performs authenticated JSON requests and maps failures to domain
// errors. It is safe for concurrent use.
type Client struct {
	baseURL    string
	tokens     auth.TokenSource
	http       *http.Client
	stream     *http.Client // no timeout: push channels are long-lived
	maxRetries int
	sse        *sse.Config
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a backend client
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	sseCfg := cfg.SSE
	if sseCfg == nil {
		sseCfg = sse.DefaultConfig()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     cfg.Tokens,
		http:       httpClient,
		stream:     &http.Client{Transport: httpClient.Transport},
		maxRetries: cfg.MaxRetries,
		sse:        sseCfg,
		clock:      clk,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// resource identifies what a request acts on, for error mapping
type resource struct {
	kind        string // chapter, outline, plot, job
	id          string
	baseVersion int
}

// do sends a JSON request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, res resource) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.maxRetries, func(attempt int, wait time.Duration) {
		c.metrics.Retry()
		c.logger.Warn("rate limited, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"wait", wait,
		)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapStatus(resp.StatusCode, data, res)
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &domain.ParseError{Op: "decode " + res.kind, Err: io.ErrUnexpectedEOF}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.ParseError{Op: "decode " + res.kind, Err: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// mapStatus converts a non-2xx response to a domain error
func mapStatus(status int, body []byte, res resource) error {
	problem, _ := httputil.DecodeProblem(status, body)
	msg := problem.Message()

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &domain.ValidationError{Message: msg}
	case http.StatusUnauthorized:
		return &domain.UnauthorizedError{Message: msg}
	case http.StatusForbidden:
		return &domain.ForbiddenError{Message: msg}
	case http.StatusNotFound:
		if problem.Detail == "" {
			msg = fmt.Sprintf("%s not found", res.kind)
		}
		return &domain.NotFoundError{Message: msg}
	case http.StatusConflict:
		if problem.Detail == "" && problem.Extra["error"] == nil {
			msg = domain.ErrConflict.Error()
		}
		return &domain.ConflictError{
			Message:      msg,
			ResourceType: res.kind,
			ResourceID:   res.id,
			BaseVersion:  res.baseVersion,
		}
	default:
		detail := problem.Detail
		if detail == "" {
			detail = msg
			if detail == http.StatusText(status) {
				detail = ""
			}
		}
		return &domain.TransportError{Status: status, Detail: detail}
	}
}

// IsRetryable reports whether a failed request may succeed if repeated
// without changes
func IsRetryable(err error) bool {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Status >= 500 || transportErr.Status == http.StatusTooManyRequests
	}
	return false
}
