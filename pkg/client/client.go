// Package client sends dispatched tool requests to the configured backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/config"
)

// Request is a fully built backend request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a successful backend response. Data is the decoded JSON
// payload, the body as a string when it is not JSON, or nil when empty.
type Response struct {
	StatusCode int
	Header     http.Header
	Data       any
}

// HTTPError is returned for responses outside the 2xx range.
type HTTPError struct {
	StatusCode int
	Data       any
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// DefaultMaxResponseBytes bounds the size of a backend response body.
const DefaultMaxResponseBytes int64 = 10 << 20

// Client executes requests with the configured default headers.
type Client struct {
	httpClient *http.Client
	timeout    *time.Duration
	maxBytes   int64
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Default headers are
// still applied on top of its transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each backend call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = &d
	}
}

// WithMaxResponseBytes overrides DefaultMaxResponseBytes. Values <= 0 keep the default.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client sending cfg.Headers with every request.
func New(cfg *config.ServerConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		maxBytes:   DefaultMaxResponseBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.httpClient
	if c.timeout != nil {
		hc.Timeout = *c.timeout
	}
	hc.Transport = &defaultHeaderTransport{base: hc.Transport, headers: cfg.Headers}
	c.httpClient = &hc
	c.logger = c.logger.With(zap.String("component", "backend_client"))
	return c
}

// Call executes req on behalf of the named operation.
func (c *Client) Call(ctx context.Context, operationID string, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", operationID, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("operation_id", operationID),
			zap.String("method", req.Method),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response for %s: %w", operationID, err)
	}
	if int64(len(raw)) > c.maxBytes {
		c.logger.Warn("backend response too large",
			zap.String("operation_id", operationID),
			zap.Int64("limit", c.maxBytes))
		return nil, fmt.Errorf("response for %s exceeds maximum allowed size (%d bytes)", operationID, c.maxBytes)
	}

	c.logger.Debug("backend request completed",
		zap.String("operation_id", operationID),
		zap.String("method", req.Method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	data := decodeBody(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Data:       data,
			Message:    fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Data: data}, nil
}

// decodeBody parses JSON payloads, keeping numbers exact, and falls back to
// the raw text.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if json.Valid(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return v
		}
	}
	return string(raw)
}
