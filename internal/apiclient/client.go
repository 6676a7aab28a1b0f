// Package apiclient is the console's HTTP client for the admin API.
//
// Every request carries the current bearer credential (read fresh from the
// credential store), successful responses are unwrapped from their
// {"data": ...} envelope, and every 401 raises the process-wide unauthorized
// notification before the error is handed back to the caller.
package apiclient

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

	"github.com/spec-kit/admin-console/internal/events"
)

const defaultTimeout = 10 * time.Second

// Doer executes a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do implements Doer.
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// TokenSource yields the credential to attach. credential.Store satisfies it.
type TokenSource interface {
	Get() (string, bool)
}

// Client is a thin pass-through to the admin API: no retries, no queueing,
// no request deduplication.
type Client struct {
	baseURL string
	http    Doer
	tokens  TokenSource
	signals events.Dispatcher
	logger  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithDoer replaces the underlying transport.
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithTimeout sets the timeout of the default transport.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if hc, ok := c.http.(*http.Client); ok && timeout > 0 {
			hc.Timeout = timeout
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a client rooted at baseURL (for example http://localhost:8080/api).
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		tokens:  tokens,
		signals: events.NewInMemoryDispatcher(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUnauthorized subscribes fn to the unauthorized notification. The
// notification has no payload; fn runs synchronously before the failing
// request returns to its caller.
func (c *Client) OnUnauthorized(fn func(context.Context)) (unsubscribe func()) {
	return c.signals.Subscribe(events.EventUnauthorized, func(ctx context.Context, _ events.Event) error {
		fn(ctx)
		return nil
	})
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends one request and decodes the unwrapped payload into out (which may
// be nil). Non-2xx responses return *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token, ok := c.tokens.Get(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp.StatusCode, raw)
		if resp.StatusCode == http.StatusUnauthorized {
			c.logger.Debug("backend rejected credential", zap.String("method", method), zap.String("path", path))
			_ = c.signals.Publish(ctx, events.New(events.EventUnauthorized, "", nil))
		}
		return apiErr
	}

	return decodePayload(raw, out)
}

// decodePayload unwraps {"data": ...} when present and passes other bodies
// through unchanged.
func decodePayload(raw []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if data, ok := envelope["data"]; ok {
			raw = data
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		var detail errorDetail
		if len(body.Error) > 0 {
			if json.Unmarshal(body.Error, &detail) != nil {
				_ = json.Unmarshal(body.Error, &detail.Message)
			}
		}
		apiErr.Code = firstNonEmpty(detail.Code, body.Code)
		apiErr.Message = firstNonEmpty(detail.Message, body.Message)
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		apiErr.Message = text
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
