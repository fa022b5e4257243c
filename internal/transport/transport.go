// Package transport performs the two Payment API calls the checkout needs
// and classifies their failures. It never decides what the user sees.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/metrics"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

const (
	opLoad = "load"
	opPost = "post"

	headerAccept      = "Accept"
	headerContentType = "Content-Type"
	headerRequestID   = "X-Request-ID"
	valueAppJSON      = "application/json"

	maxBodyBytes = 4 << 20
)

// Config tunes the HTTP client.
type Config struct {
	Timeout time.Duration
	// Headers are passed through unmodified on every request, e.g. Authorization.
	Headers map[string]string
	Accept  string
}

// Client talks to the Payment API. Calls share no state besides the
// underlying http.Client, so one Client can serve concurrent sessions.
type Client struct {
	http    *http.Client
	headers http.Header
	accept  string
	log     *zap.Logger
	metrics *metrics.Recorder
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records every call.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = r }
}

// New creates a Client.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Accept == "" {
		cfg.Accept = valueAppJSON
	}
	headers := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	c := &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		headers: headers,
		accept:  cfg.Accept,
		log:     logger.Named("transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadSession fetches the list result behind listURL.
func (c *Client) LoadSession(ctx context.Context, listURL string) (*model.ListResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create list request: %w", err)
	}
	body, err := c.do(req, opLoad)
	if err != nil {
		return nil, err
	}
	var list model.ListResult
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &apperr.ConnectionError{Op: opLoad, Err: fmt.Errorf("decode list result: %w", err)}
	}
	return &list, nil
}

// PostOperation posts op to its operation link.
func (c *Client) PostOperation(ctx context.Context, op *model.Operation) (*model.OperationResult, error) {
	if op == nil {
		return nil, errors.New("operation cannot be nil")
	}
	payload, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode operation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, op.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create operation request: %w", err)
	}
	req.Header.Set(headerContentType, valueAppJSON)
	if op.RequestID != "" {
		req.Header.Set(headerRequestID, op.RequestID)
	}
	body, err := c.do(req, opPost)
	if err != nil {
		return nil, err
	}
	var result model.OperationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &apperr.ConnectionError{Op: opPost, Err: fmt.Errorf("decode operation result: %w", err)}
	}
	return &result, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	for k, vals := range c.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set(headerAccept, c.accept)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, "connection", start)
		c.log.Warn("request failed", zap.String("op", op), zap.String("url", req.URL.String()), zap.Error(err))
		return nil, &apperr.ConnectionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(op, "connection", start)
		return nil, &apperr.ConnectionError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.observe(op, "ok", start)
		c.log.Debug("request done", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return body, nil
	}

	info, ok := decodeErrorInfo(body)
	if !ok {
		c.observe(op, "connection", start)
		c.log.Warn("unexpected response", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return nil, &apperr.ConnectionError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	c.observe(op, "server", start)
	c.log.Info("request rejected",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.String("resultInfo", info.ResultInfo),
		zap.Stringer("interaction", info.InteractionOrEmpty()),
	)
	return nil, &apperr.ServerError{Op: op, StatusCode: resp.StatusCode, Info: info}
}

func (c *Client) observe(op, outcome string, start time.Time) {
	c.metrics.ObserveRequest(op, outcome, time.Since(start))
}

// decodeErrorInfo accepts only JSON objects carrying a resultInfo member.
func decodeErrorInfo(body []byte) (*model.ErrorInfo, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() || !parsed.Get("resultInfo").Exists() {
		return nil, false
	}
	var info model.ErrorInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, false
	}
	return &info, true
}
