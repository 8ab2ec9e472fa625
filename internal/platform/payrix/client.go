// Package payrix implements domain.DisputePlatform against the Payrix REST API.
// Rate limiting, rate-limit retries and pagination are handled here so the
// dispute engine never sees them.
package payrix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// Environment selects the Payrix API host.
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// BaseURL returns the API root for the environment.
func (e Environment) BaseURL() string {
	if e == EnvironmentProduction {
		return "https://api.payrix.com/"
	}
	return "https://test-api.payrix.com/"
}

// ParseEnvironment accepts "test" (also "sandbox") and "production" (also "prod").
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "test", "sandbox":
		return EnvironmentTest, nil
	case "production", "prod":
		return EnvironmentProduction, nil
	default:
		return "", fmt.Errorf("unknown payrix environment %q", s)
	}
}

const (
	defaultRequestsPerMinute = 100
	defaultMaxRetries        = 3
	defaultRetryDelay        = 10 * time.Second
	defaultTimeout           = 30 * time.Second

	// maxPageLimit is the largest page Payrix serves.
	maxPageLimit = 100

	rateLimitErrorCode = "C_RATE_LIMIT_EXCEEDED_TEMP_BLOCK"
)

var errRateLimited = errors.New("rate limited by payrix")

// Client talks to the Payrix API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	pageLimit  int
}

// Option configures a Client.
type Option func(*Client)

// WithEnvironment selects the test or production host.
func WithEnvironment(env Environment) Option {
	return func(c *Client) { c.baseURL = env.BaseURL() }
}

// WithBaseURL overrides the API root, e.g. for a local mock.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit caps outgoing requests per minute. Zero or less disables the limiter.
func WithRateLimit(requestsPerMinute int) Option {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
	}
}

// WithRetry sets how often, and how far apart, rate-limited requests are retried.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithPageLimit sets the page size used by searches (1 to 100).
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= maxPageLimit {
			c.pageLimit = n
		}
	}
}

// NewClient creates a Payrix client for apiKey. The test environment is the default.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("payrix: API key is required")
	}

	c := &Client{
		baseURL:    EnvironmentTest.BaseURL(),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		pageLimit:  maxPageLimit,
	}
	WithRateLimit(defaultRequestsPerMinute)(c)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client sends requests to.
func (c *Client) BaseURL() string { return c.baseURL }

// apiError is one entry of an "errors" array.
type apiError struct {
	Msg       string `json:"msg"`
	Field     string `json:"field,omitempty"`
	Code      int    `json:"code,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

func (e apiError) String() string {
	s := e.Msg
	if e.Field != "" {
		s += " (field: " + e.Field + ")"
	}
	return s
}

type pageInfo struct {
	Current int  `json:"current"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// envelope is the body of every Payrix response. Failures are often reported
// with HTTP 200 and a non-empty errors array.
type envelope struct {
	Response *struct {
		Data    []json.RawMessage `json:"data"`
		Errors  []apiError        `json:"errors"`
		Details struct {
			Page pageInfo `json:"page"`
		} `json:"details"`
	} `json:"response"`
	Errors []apiError `json:"errors"`
}

func (e *envelope) data() []json.RawMessage {
	if e.Response == nil {
		return nil
	}
	return e.Response.Data
}

func (e *envelope) page() pageInfo {
	if e.Response == nil {
		return pageInfo{}
	}
	return e.Response.Details.Page
}

// request describes one API call.
type request struct {
	method  string
	path    string
	query   url.Values
	search  string
	body    interface{}
	headers map[string]string
}

// do sends req, waiting on the rate limiter before every attempt. Only rate
// limiting (HTTP 429 or the in-body rate-limit code) is retried.
func (c *Client) do(ctx context.Context, req request) (*envelope, error) {
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	attempt := 0
	operation := func() (*envelope, error) {
		attempt++
		env, err := c.send(ctx, req, endpoint, payload)
		if err == nil {
			return env, nil
		}
		if isRateLimited(err) {
			if attempt <= c.maxRetries {
				log.Printf("Payrix rate limited on %s %s, retry %d/%d", req.method, req.path, attempt, c.maxRetries)
			}
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var policy backoff.BackOff = backoff.NewConstantBackOff(c.retryDelay)
	policy = backoff.WithMaxRetries(policy, uint64(max(c.maxRetries, 0)))
	return backoff.RetryWithData(operation, backoff.WithContext(policy, ctx))
}

func (c *Client) send(ctx context.Context, req request, endpoint string, payload []byte) (*envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.TransportError{Message: "rate limiter wait", Cause: err}
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("APIKEY", c.apiKey)
	if req.search != "" {
		httpReq.Header.Set("search", req.search)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Retryable: ctx.Err() == nil, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Retryable: true, Message: "failed to read response", Cause: err}
	}

	// Handle response codes
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, rateLimitError(resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Message: "invalid API key"}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("payrix %s: %w", req.path, domain.ErrNotFound)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Retryable: true, Message: "payrix service is temporarily unavailable"}
	case resp.StatusCode >= 500:
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Retryable: true, Message: truncate(raw)}
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Message: "bad request: " + truncate(raw)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Message: "unexpected status: " + truncate(raw)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}

	errs := env.Errors
	if env.Response != nil {
		errs = append(errs, env.Response.Errors...)
	}
	if len(errs) > 0 {
		for _, e := range errs {
			if e.ErrorCode == rateLimitErrorCode {
				return nil, rateLimitError(resp.StatusCode)
			}
		}
		return nil, rejection(errs)
	}
	return &env, nil
}

func rateLimitError(status int) error {
	return &domain.TransportError{StatusCode: status, Retryable: true, Cause: errRateLimited}
}

func isRateLimited(err error) bool {
	return errors.Is(err, errRateLimited)
}

func rejection(errs []apiError) *domain.PlatformRejection {
	r := &domain.PlatformRejection{}
	for _, e := range errs {
		r.Messages = append(r.Messages, e.String())
		if r.Code == "" {
			switch {
			case e.ErrorCode != "":
				r.Code = e.ErrorCode
			case e.Code != 0:
				r.Code = strconv.Itoa(e.Code)
			}
		}
	}
	return r
}

func truncate(b []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
