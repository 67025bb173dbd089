// Package uploader delivers record batches to the remote sync API.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/livinlefevreloca/dinesync/internal/batch"
)

// Payload formats
const (
	// FormatArray posts the batch as a bare JSON array of records
	FormatArray = "array"
	// FormatEnvelope wraps the records with run and batch metadata
	FormatEnvelope = "envelope"
)

// RunIDHeader carries the run identifier on every request
const RunIDHeader = "X-Sync-Run-ID"

// Response read limits. maxErrorBody caps what a failed response keeps
// for its error message.
const (
	maxErrorBody    = 4 << 10
	maxResponseBody = 1 << 20
)

// Config holds API delivery settings
type Config struct {
	BaseURL       string            `toml:"base_url"`
	Timeout       time.Duration     `toml:"timeout"`
	Headers       map[string]string `toml:"headers"`
	PayloadFormat string            `toml:"payload_format"`
}

// DefaultConfig returns the API defaults. BaseURL has no default.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		PayloadFormat: FormatArray,
	}
}

// Validate checks the API settings
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("api base_url must be specified")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("api base_url is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api base_url must be an absolute http(s) URL: %s", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}
	if c.PayloadFormat != FormatArray && c.PayloadFormat != FormatEnvelope {
		return fmt.Errorf("unsupported payload_format: %s (must be %s or %s)", c.PayloadFormat, FormatArray, FormatEnvelope)
	}
	return nil
}

// APIError reports a failed delivery. StatusCode is 0 when no response
// was received.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api request failed: %s", e.Message)
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Request describes one batch delivery
type Request struct {
	RunID   string
	Task    string
	Route   string
	Timeout time.Duration // zero uses Config.Timeout
	Batch   batch.Batch
}

// Result describes a successful delivery
type Result struct {
	StatusCode int
	Attempts   int
	Body       json.RawMessage
}

// Client posts batches to the API
type Client struct {
	config Config
	policy RetryPolicy
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates an API client
func New(config Config, policy RetryPolicy, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: config,
		policy: policy,
		http:   &http.Client{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint joins the base URL and a task route
func (c *Client) Endpoint(route string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + route
}

// Upload sends one batch, retrying transient failures per the policy
func (c *Client) Upload(ctx context.Context, req Request) (Result, error) {
	body, err := c.encode(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode batch %d: %w", req.Batch.Number, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxRetries+1; attempt++ {
		if attempt > 1 {
			delay := c.policy.Delay(attempt - 1)
			c.logger.Debug("retrying upload",
				"task", req.Task,
				"batch", req.Batch.Number,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			if err := wait(ctx, delay); err != nil {
				return Result{}, &APIError{Message: err.Error(), Err: err}
			}
		}

		result, err := c.post(ctx, req, body)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}

		lastErr = err
		if !c.policy.Retryable(err) {
			break
		}
	}

	return Result{}, lastErr
}

func (c *Client) post(ctx context.Context, req Request, body []byte) (Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(req.Route), bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.RunID != "" {
		httpReq.Header.Set(RunIDHeader, req.RunID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, &APIError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		return Result{}, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp, respBody)}
	}

	// A body cut off mid-read is treated like a dropped connection
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Result{}, &APIError{Message: "read response: " + err.Error(), Err: err}
	}

	result := Result{StatusCode: resp.StatusCode}
	if json.Valid(respBody) {
		result.Body = respBody
	}
	return result, nil
}

type envelope struct {
	RunID   string         `json:"run_id,omitempty"`
	Task    string         `json:"task"`
	Batch   int            `json:"batch"`
	Count   int            `json:"count"`
	Records []batch.Record `json:"records"`
}

func (c *Client) encode(req Request) ([]byte, error) {
	records := req.Batch.Records
	if records == nil {
		records = []batch.Record{}
	}

	if c.config.PayloadFormat == FormatEnvelope {
		return json.Marshal(envelope{
			RunID:   req.RunID,
			Task:    req.Task,
			Batch:   req.Batch.Number,
			Count:   len(records),
			Records: records,
		})
	}
	return json.Marshal(records)
}

func errorMessage(resp *http.Response, body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
