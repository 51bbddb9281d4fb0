package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonwraymond/contentops/cache"
	"github.com/jonwraymond/contentops/observe"
	"github.com/jonwraymond/contentops/resilience"
)

// Querier runs a raw query against the primary source. *cms.Client
// implements it.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error)
}

// DefaultAttemptTimeout bounds a single primary attempt.
const DefaultAttemptTimeout = 10 * time.Second

// Client is the resilient client for the primary source. Each fetch runs
// through the response cache and then the executor, whose circuit breaker
// wraps retries around a per-attempt timeout.
type Client struct {
	querier Querier
	source  string
	exec    *resilience.Executor
	cache   *cache.CacheMiddleware
	mw      *observe.Middleware
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithExecutor replaces the default executor.
func WithExecutor(e *resilience.Executor) ClientOption {
	return func(c *Client) { c.exec = e }
}

// WithCache puts a response cache in front of the executor.
func WithCache(m *cache.CacheMiddleware) ClientOption {
	return func(c *Client) { c.cache = m }
}

// WithMiddleware wraps every fetch with tracing, metrics and logging.
func WithMiddleware(m *observe.Middleware) ClientOption {
	return func(c *Client) { c.mw = m }
}

// WithSourceName sets the source name used in telemetry and cache keys.
// Default: "sanity"
func WithSourceName(name string) ClientOption {
	return func(c *Client) { c.source = name }
}

// NewClient creates a resilient client around q. Without WithExecutor it uses
// a breaker, retry policy and attempt timeout with their defaults.
func NewClient(q Querier, opts ...ClientOption) *Client {
	c := &Client{querier: q, source: string(SourceSanity)}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = resilience.NewExecutor(
			resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
			resilience.WithRetry(resilience.NewRetry(resilience.DefaultRetryPolicy())),
			resilience.WithTimeout(DefaultAttemptTimeout),
		)
	}
	if c.mw == nil {
		c.mw = observe.NewNopMiddleware()
	}
	return c
}

// Fetch runs query against the primary source.
func (c *Client) Fetch(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	return c.FetchOp(ctx, "query", query, params)
}

// FetchOp is Fetch with an operation name for telemetry.
func (c *Client) FetchOp(ctx context.Context, op, query string, params map[string]any) (json.RawMessage, error) {
	meta := observe.FetchMeta{Source: c.source, Operation: op, Label: op, Query: query}
	return c.mw.Wrap(func(ctx context.Context, meta observe.FetchMeta) (json.RawMessage, error) {
		return c.cache.Fetch(ctx, c.source, query, params, func(ctx context.Context) ([]byte, error) {
			return c.execute(ctx, meta.Label, query, params)
		})
	})(ctx, meta)
}

// FetchUncached runs query through the resilience executor like Fetch but
// never reads or fills the response cache, so its outcome always reflects
// the backend.
func (c *Client) FetchUncached(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	meta := observe.FetchMeta{Source: c.source, Operation: "health", Label: "health", Query: query}
	return c.mw.Wrap(func(ctx context.Context, meta observe.FetchMeta) (json.RawMessage, error) {
		return c.execute(ctx, meta.Label, query, params)
	})(ctx, meta)
}

func (c *Client) execute(ctx context.Context, label, query string, params map[string]any) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.exec.Execute(ctx, label, func(ctx context.Context) error {
		raw, err := c.querier.Query(ctx, query, params)
		if err != nil {
			return err
		}
		out = raw
		return nil
	})
	return out, err
}

// BreakerState returns the circuit state, StateClosed when no breaker is
// configured.
func (c *Client) BreakerState() resilience.State {
	if cb := c.exec.CircuitBreaker(); cb != nil {
		return cb.State()
	}
	return resilience.StateClosed
}

// ResetCircuitBreaker forces the breaker closed.
func (c *Client) ResetCircuitBreaker() {
	if cb := c.exec.CircuitBreaker(); cb != nil {
		cb.Reset()
	}
}

// BreakerMetrics returns a snapshot of the breaker counters.
func (c *Client) BreakerMetrics() resilience.CircuitBreakerMetrics {
	if cb := c.exec.CircuitBreaker(); cb != nil {
		return cb.Metrics()
	}
	return resilience.CircuitBreakerMetrics{State: resilience.StateClosed}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// FetchInto runs query through c and decodes the result into T. Struct
// results, and struct elements of slice results, are validated. A null
// result is reported as ErrNotFound. Decode and validation failures are
// client faults and are never retried.
func FetchInto[T any](ctx context.Context, c *Client, op, query string, params map[string]any) (T, error) {
	var out T

	raw, err := c.FetchOp(ctx, op, query, params)
	if err != nil {
		return out, err
	}

	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return out, notFound(op)
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, invalid(op, fmt.Errorf("decode: %w", err))
	}
	if err := validateValue(out); err != nil {
		return out, invalid(op, err)
	}
	return out, nil
}

func invalid(op string, err error) *resilience.ClassifiedError {
	return &resilience.ClassifiedError{
		Kind:    resilience.KindClientFault,
		Message: fmt.Sprintf("%s: %v", op, err),
		Err:     fmt.Errorf("%w: %w", ErrInvalidDocument, err),
	}
}

func validateValue(v any) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Struct:
		return validate.Struct(v)
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			if elem.Kind() != reflect.Struct {
				return nil
			}
			if err := validate.Struct(elem.Interface()); err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
		}
	}
	return nil
}
