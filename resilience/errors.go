package resilience

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker short-circuits a call.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrTimeout is returned when an attempt exceeds its timeout.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// Kind is the failure category assigned by Classify.
type Kind int

const (
	// KindUnknown is any failure the classifier cannot place.
	KindUnknown Kind = iota
	// KindNetwork is a transport-level failure (refused, DNS, reset, timeout).
	KindNetwork
	// KindRateLimit is an HTTP 429 response.
	KindRateLimit
	// KindServerFault is an HTTP 5xx response.
	KindServerFault
	// KindClientFault is an HTTP 4xx response other than 429.
	KindClientFault
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimit:
		return "rate_limit"
	case KindServerFault:
		return "server_fault"
	case KindClientFault:
		return "client_fault"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind may succeed on a later attempt.
// Unknown failures are assumed transient.
func (k Kind) Retryable() bool {
	return k != KindClientFault
}

// ParseKind parses the output of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "network":
		return KindNetwork, nil
	case "rate_limit":
		return KindRateLimit, nil
	case "server_fault":
		return KindServerFault, nil
	case "client_fault":
		return KindClientFault, nil
	case "unknown":
		return KindUnknown, nil
	default:
		return KindUnknown, fmt.Errorf("resilience: unknown kind %q", s)
	}
}

// ClassifiedError is a failure tagged with its Kind.
//
// A ClassifiedError is created once per failure and never mutated.
type ClassifiedError struct {
	Kind    Kind
	Message string

	// StatusCode is the HTTP status, or 0 when the failure had none.
	StatusCode int

	// RetryAfter is the server-requested wait, or 0 when absent.
	RetryAfter time.Duration

	// Err is the original failure.
	Err error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the original failure.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error may succeed on retry.
func (e *ClassifiedError) Retryable() bool {
	return e.Kind.Retryable()
}

// StatusError is an HTTP response failure returned by source clients.
type StatusError struct {
	Code int

	// Retry is the parsed Retry-After value, 0 when absent.
	Retry time.Duration

	// Body is a truncated response body for diagnostics.
	Body string
}

// NewStatusError builds a StatusError, parsing a raw Retry-After header value.
func NewStatusError(code int, retryAfter string, body string) *StatusError {
	d, _ := ParseRetryAfter(retryAfter, time.Now())
	if len(body) > 512 {
		body = body[:512]
	}
	return &StatusError{Code: code, Retry: d, Body: body}
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("http status %d", e.Code)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.Code
}

// RetryAfter returns the server-requested wait.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Retry
}
