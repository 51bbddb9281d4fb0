package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/contentops/resilience"
)

func ExampleNewCircuitBreaker() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Second,
	})

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	if err == nil {
		fmt.Println("Operation succeeded")
	}
	// Output:
	// Operation succeeded
}

func ExampleCircuitBreaker_State() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
	})

	ctx := context.Background()
	fmt.Println("Initial state:", cb.State())

	simulatedErr := errors.New("service unavailable")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error {
			return simulatedErr
		})
	}
	fmt.Println("After failures:", cb.State())

	err := cb.Execute(ctx, func(ctx context.Context) error { return nil })
	fmt.Println("Short-circuited:", resilience.IsCircuitOpen(err))

	cb.Reset()
	fmt.Println("After reset:", cb.State())
	// Output:
	// Initial state: closed
	// After failures: open
	// Short-circuited: true
	// After reset: closed
}

func ExampleNewCircuitBreaker_withStateChange() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		OnStateChange: func(from, to resilience.State) {
			fmt.Printf("Circuit changed: %s -> %s\n", from, to)
		},
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("failure")
	})
	// Output:
	// Circuit changed: closed -> open
}

func ExampleClassify() {
	errs := []error{
		resilience.NewStatusError(http.StatusServiceUnavailable, "", "maintenance"),
		resilience.NewStatusError(http.StatusTooManyRequests, "5", ""),
		resilience.NewStatusError(http.StatusNotFound, "", ""),
		errors.New("dial tcp 10.0.0.1:443: connect: connection refused"),
		errors.New("unexpected payload"),
	}

	for _, err := range errs {
		ce := resilience.Classify(err)
		fmt.Printf("%s retryable=%v retry_after=%s\n", ce.Kind, ce.Retryable(), ce.RetryAfter)
	}
	// Output:
	// server_fault retryable=true retry_after=0s
	// rate_limit retryable=true retry_after=5s
	// client_fault retryable=false retry_after=0s
	// network retryable=true retry_after=0s
	// unknown retryable=true retry_after=0s
}

func ExampleNewRetry() {
	retry := resilience.NewRetry(resilience.RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		OnRetry: func(label string, attempt int, err *resilience.ClassifiedError, _ time.Duration) {
			fmt.Printf("%s: retry %d after %s\n", label, attempt, err.Kind)
		},
	})

	attempts := 0
	err := retry.Execute(context.Background(), "posts", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return resilience.NewStatusError(http.StatusBadGateway, "", "")
		}
		return nil
	})

	fmt.Println("Attempts:", attempts, "Error:", err)
	// Output:
	// posts: retry 1 after server_fault
	// posts: retry 2 after server_fault
	// Attempts: 3 Error: <nil>
}

func ExampleNewExecutor() {
	executor := resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
		})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryPolicy{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
		})),
		resilience.WithTimeout(5*time.Second),
	)

	err := executor.Execute(context.Background(), "posts", func(ctx context.Context) error {
		return nil
	})

	fmt.Println("Error:", err)
	fmt.Println("Breaker:", executor.CircuitBreaker().State())
	// Output:
	// Error: <nil>
	// Breaker: closed
}
