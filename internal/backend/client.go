package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"medword/internal/pkg/apperr"
)

const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultListTimeout    = 10 * time.Second
	DefaultUploadTimeout  = 5 * time.Minute

	apiKeyHeader = "X-API-Key"
	maxDetailLen = 200
)

// Client talks to the remote inference service. Every call is bounded by one
// of the configured timeouts and returns apperr-classified errors.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger

	requestTimeout time.Duration
	listTimeout    time.Duration
	uploadTimeout  time.Duration
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeouts sets the request, list and upload timeouts. Zero keeps the default.
func WithTimeouts(request, list, upload time.Duration) Option {
	return func(c *Client) {
		if request > 0 {
			c.requestTimeout = request
		}
		if list > 0 {
			c.listTimeout = list
		}
		if upload > 0 {
			c.uploadTimeout = upload
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{},
		logger:         zap.NewNop(),
		requestTimeout: DefaultRequestTimeout,
		listTimeout:    DefaultListTimeout,
		uploadTimeout:  DefaultUploadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("backend")
	return c
}

type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentLen  int64
	contentType string
	accept      string
	timeout     time.Duration
}

// do runs req and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, req.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return nil, fmt.Errorf("build %s request failed: %w", req.op, err)
	}
	if req.contentLen > 0 {
		httpReq.ContentLength = req.contentLen
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	accept := req.accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	if c.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("op", req.op), zap.Error(err))
		return nil, apperr.FromContext(req.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.FromContext(req.op, fmt.Errorf("read response failed: %w", err))
	}
	c.logger.Debug("backend request done",
		zap.String("op", req.op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(req.op, resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any, timeout time.Duration) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request failed: %w", op, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	raw, err := c.do(ctx, request{
		op:          op,
		method:      method,
		path:        path,
		body:        body,
		contentType: contentType,
		timeout:     timeout,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(op, raw, out)
}

func decode(op string, raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperr.Error{Kind: apperr.KindInvalidResponse, Op: op, Message: "undecodable response body", Err: err}
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(op string, status int, raw []byte) error {
	msg := detailMessage(raw)
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", status)
	}

	var kind apperr.Kind
	switch {
	case status == http.StatusNotFound:
		kind = apperr.KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = apperr.KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = apperr.KindForbidden
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = apperr.KindTimeout
	default:
		kind = apperr.KindNetwork
	}
	return &apperr.Error{Kind: kind, Op: op, Message: msg, Err: fmt.Errorf("status %d", status)}
}

// detailMessage pulls the human readable message out of an error body.
func detailMessage(raw []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		text := strings.TrimSpace(string(raw))
		if len(text) > maxDetailLen {
			text = text[:maxDetailLen]
		}
		return text
	}
	var detail string
	if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &detail) == nil && detail != "" {
		return detail
	}
	return body.Message
}
