package api

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
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/logger"
)

const idempotencyHeader = "Idempotency-Key"

// TokenSource supplies the bearer token of the current session, or "".
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// BreakerSettings tunes the circuit breaker wrapping every request.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Client is the REST collaborator for the storefront backend.
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	tokens   TokenSource
	timeout  time.Duration
	validate *validator.Validate
	log      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(l) }
}

// WithRequestTimeout bounds each request. Zero (the default) means no
// per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithBreaker(s BreakerSettings) Option {
	return func(c *Client) { c.breaker = newBreaker(s, c) }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithPropagators(propagation.TraceContext{})),
		},
		validate: validator.New(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = newBreaker(BreakerSettings{}, c)
	}
	return c, nil
}

// SetTokenSource wires the session after construction; session state and
// the client depend on each other.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

func newBreaker(s BreakerSettings, c *Client) *gobreaker.CircuitBreaker[*http.Response] {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

type request struct {
	method         string
	path           string
	body           any
	idempotencyKey string
}

// do performs the request and decodes a 2xx body into out (when non-nil).
// Transport failures, 5xx answers and an open breaker become
// *domain.NetworkError; 4xx answers become *Error.
func (c *Client) do(ctx context.Context, req request, out any) error {
	op := req.method + " " + req.path
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("api: %s: marshal body: %w", op, err)
		}
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "application/json")
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if req.idempotencyKey != "" {
			httpReq.Header.Set(idempotencyHeader, req.idempotencyKey)
		}
		if c.tokens != nil {
			if token := c.tokens.Token(); token != "" {
				httpReq.Header.Set("Authorization", "Bearer "+token)
			}
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			defer resp.Body.Close()
			return nil, decodeError(op, resp)
		}
		return resp, nil
	})
	if err != nil {
		logger.WithTrace(ctx, c.log).Debug("api request failed", zap.String("op", op), zap.Error(err))
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, op, err)
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	apiErr := &Error{Op: op, StatusCode: resp.StatusCode}
	raw := drainError(resp.Body)
	var p errorPayload
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		apiErr.Code = p.Code
		apiErr.Message = firstNonEmpty(p.Message, p.Error)
	} else {
		apiErr.Message = raw
	}
	return apiErr
}

// check validates a decoded payload at the boundary.
func (c *Client) check(op string, payload any) error {
	if err := c.validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s: field %s failed %q", ErrInvalidResponse, op, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, op, err)
	}
	return nil
}

func escape(segment string) string {
	return url.PathEscape(strings.TrimSpace(segment))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
