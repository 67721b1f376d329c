//go:generate mockgen -destination mock_api/mock_api.go github.com/nhle/socialterm/internal/api Gateway

// Package api is the HTTP gateway to the backend services. Every REST and
// GraphQL call goes through Client, which attaches the bearer credential,
// paces requests and normalizes failures into typed errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nhle/socialterm/internal/logging"
)

var log = logging.NewNamed("api")

// TokenSource supplies the bearer credential for outgoing requests. An
// empty token means the request is sent without an Authorization header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Gateway is the request surface the domain stores depend on. *Client
// implements it.
type Gateway interface {
	Get(ctx context.Context, path string, result interface{}, opts ...RequestOption) error
	Post(ctx context.Context, path string, body, result interface{}, opts ...RequestOption) error
	Put(ctx context.Context, path string, body, result interface{}, opts ...RequestOption) error
	Delete(ctx context.Context, path string, result interface{}, opts ...RequestOption) error
}

var _ Gateway = (*Client)(nil)

// Client is a thin HTTP client for the backend REST API.
// It handles Bearer token authentication, JSON marshaling, request pacing
// and automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets the source of the bearer credential.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit paces outgoing requests to rps per second. A non-positive
// rps disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries bounds the number of retries on HTTP 429.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a new API client. baseURL is prefixed to every relative
// path (e.g. http://localhost:5173/api).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestOption adjusts a single request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	token    string
	hasToken bool
	query    url.Values
}

// WithToken overrides the TokenSource for one request. It is used right
// after login, before the credential is committed to the session.
func WithToken(token string) RequestOption {
	return func(rc *requestConfig) {
		rc.token = token
		rc.hasToken = true
	}
}

// WithQuery appends query parameters to the request URL.
func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) { rc.query = q }
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
	opts ...RequestOption,
) error {
	return c.Do(ctx, http.MethodGet, path, nil, result, opts...)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
	opts ...RequestOption,
) error {
	return c.Do(ctx, http.MethodPost, path, body, result, opts...)
}

// Put performs an HTTP PUT request with a JSON body.
func (c *Client) Put(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
	opts ...RequestOption,
) error {
	return c.Do(ctx, http.MethodPut, path, body, result, opts...)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(
	ctx context.Context,
	path string,
	result interface{},
	opts ...RequestOption,
) error {
	return c.Do(ctx, http.MethodDelete, path, nil, result, opts...)
}

// Upload posts a multipart form with the given fields and a single file
// part named fileField.
func (c *Client) Upload(
	ctx context.Context,
	path string,
	fields map[string]string,
	fileField, fileName string,
	file io.Reader,
	result interface{},
	opts ...RequestOption,
) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return &RequestError{Op: "creating form file", Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return &RequestError{Op: "reading upload " + fileName, Err: err}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return &RequestError{Op: "writing form field " + k, Err: err}
		}
	}
	if err := w.Close(); err != nil {
		return &RequestError{Op: "closing multipart writer", Err: err}
	}

	return c.send(ctx, http.MethodPost, path, buf.Bytes(), w.FormDataContentType(), result, opts)
}

// Do sends a JSON request. path is either relative to the base URL or an
// absolute http(s) URL.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
	opts ...RequestOption,
) error {
	var payload []byte
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Op: "marshaling request body", Err: err}
		}
		payload = data
		contentType = "application/json"
	}
	return c.send(ctx, method, path, payload, contentType, result, opts)
}

// send is the core HTTP method that builds the request, handles auth,
// pacing, retry on 429 and JSON decoding.
func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	payload []byte,
	contentType string,
	result interface{},
	opts []RequestOption,
) error {
	var rc requestConfig
	for _, opt := range opts {
		opt(&rc)
	}

	target, err := c.resolve(path, rc.query)
	if err != nil {
		return &RequestError{Op: "building url", Err: err}
	}

	token := rc.token
	if !rc.hasToken && c.tokens != nil {
		token = c.tokens.Token()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return &NoResponseError{Method: method, Path: path, Err: err}
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return &RequestError{Op: "creating request", Err: err}
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
			return &NoResponseError{Method: method, Path: path, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return &NoResponseError{Method: method, Path: path, Err: readErr}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &ResponseError{
				Method:        method,
				Path:          path,
				StatusCode:    resp.StatusCode,
				ServerMessage: serverMessage(respBody),
				Body:          respBody,
			}
			if attempt == c.maxRetries {
				break
			}

			waitDuration := retryAfterDuration(resp, attempt)
			log.Warn("rate limited",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("wait", waitDuration),
			)

			select {
			case <-ctx.Done():
				return &NoResponseError{Method: method, Path: path, Err: ctx.Err()}
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &ResponseError{
				Method:        method,
				Path:          path,
				StatusCode:    resp.StatusCode,
				ServerMessage: serverMessage(respBody),
				Body:          respBody,
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w from %s %s: %v", ErrMalformedResponse, method, path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		raw = c.baseURL + path
	}

	if len(query) == 0 {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if at, err := http.ParseTime(header); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
			return 0
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

// IsStatus reports whether err is a ResponseError with the given status.
func IsStatus(err error, status int) bool {
	var respErr *ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}
