// Package apiclient talks to the CRM REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/config"
	"github.com/spec-kit/leadcrm/internal/observability"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// TokenSource yields the bearer token for the next request, or "" for none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Client is a thin JSON client for the CRM API. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *zap.Logger
	newID   func() string

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func(ctx context.Context, token string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithMetrics records every call in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = observability.OrNop(logger) }
}

// WithRequestIDs tags every request with an X-Request-ID from newID.
func WithRequestIDs(newID func() string) Option {
	return func(c *Client) { c.newID = newID }
}

// WithBreaker wraps calls in a circuit breaker. Only transport failures and
// 5xx responses count as failures.
func WithBreaker(cfg config.BreakerConfig) Option {
	return func(c *Client) {
		if !cfg.Enabled {
			c.breaker = nil
			return
		}
		minRequests := cfg.MinRequests
		if minRequests == 0 {
			minRequests = 1
		}
		ratio := cfg.FailureRatio
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "crm-api",
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout(),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= minRequests && failureRatio >= ratio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
}

// New builds a client rooted at baseURL (e.g. http://host/api).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the API and breaker settings.
func NewFromConfig(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	base := []Option{
		WithLogger(logger),
		WithMetrics(metrics),
		WithTimeout(cfg.API.Timeout()),
		WithBreaker(cfg.Breaker),
	}
	return New(cfg.API.BaseURL, append(base, opts...)...)
}

// SetTokenSource replaces the token source after construction.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized registers fn to run when a request that carried a token
// is rejected with 401. fn receives the rejected token.
func (c *Client) OnUnauthorized(fn func(ctx context.Context, token string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type response struct {
	status int
	body   []byte
}

var errServer = errors.New("server error")

type call struct {
	method   string
	path     string
	query    url.Values
	body     any
	out      any
	fallback string
}

func (c *Client) do(ctx context.Context, req call) error {
	start := time.Now()

	token, err := c.token(ctx)
	if err != nil {
		c.logger.Warn("token source failed", zap.Error(err))
		token = ""
	}

	resp, err := c.execute(ctx, req, token)
	if err != nil {
		code := apperrors.CodeNetwork
		mapped := apperrors.NewNetworkError(networkMessage(req.fallback), err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			code = apperrors.CodeCircuitOpen
			mapped = &apperrors.DomainError{Code: code, Message: "service temporarily unavailable, try again shortly", Err: err}
		}
		c.metrics.RecordError(req.path, req.method, code)
		c.logger.Warn("api request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err))
		return mapped
	}

	c.metrics.RecordRequest(req.path, req.method, resp.status, time.Since(start))

	if resp.status < 200 || resp.status >= 300 {
		apiErr := decodeError(resp.status, resp.body, req.fallback)
		c.metrics.RecordError(req.path, req.method, apiErr.Code)
		c.logger.Debug("api request rejected",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", resp.status),
			zap.String("code", apiErr.Code))
		if resp.status == http.StatusUnauthorized && token != "" {
			c.unauthorized(ctx, token)
		}
		return apiErr
	}

	if req.out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, req.out); err != nil {
		return &apperrors.DomainError{
			Code:       apperrors.CodeAPI,
			Message:    "unexpected response from server",
			HTTPStatus: resp.status,
			Err:        err,
		}
	}
	return nil
}

func (c *Client) execute(ctx context.Context, req call, token string) (*response, error) {
	run := func() (any, error) {
		resp, err := c.roundTrip(ctx, req, token)
		if err != nil {
			return nil, err
		}
		if resp.status >= 500 {
			return resp, errServer
		}
		return resp, nil
	}

	var (
		out any
		err error
	)
	if c.breaker != nil {
		out, err = c.breaker.Execute(run)
	} else {
		out, err = run()
	}
	if errors.Is(err, errServer) {
		return out.(*response), nil
	}
	if err != nil {
		return nil, err
	}
	return out.(*response), nil
}

func (c *Client) roundTrip(ctx context.Context, req call, token string) (*response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if c.newID != nil {
		httpReq.Header.Set("X-Request-ID", c.newID())
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return &response{status: httpResp.StatusCode, body: data}, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return "", nil
	}
	return ts.Token(ctx)
}

func (c *Client) unauthorized(ctx context.Context, token string) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(ctx, token)
	}
}

func networkMessage(fallback string) string {
	return fallback + ": unable to reach server"
}
