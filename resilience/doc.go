// Package resilience provides the failure-tolerance primitives used by the
// content client.
//
// The package classifies raw failures into a small taxonomy, retries the
// retryable ones with exponential backoff, and isolates a chronically failing
// backend behind a circuit breaker. The pieces compose through Executor.
//
// # Classification
//
// Classify turns any error into a *ClassifiedError tagged with a Kind:
//
//   - KindNetwork: connection refused, DNS failure, reset, per-attempt timeout
//   - KindRateLimit: HTTP 429, optionally carrying Retry-After
//   - KindServerFault: HTTP 5xx
//   - KindClientFault: HTTP 4xx other than 429, never retried
//   - KindUnknown: anything else, retried optimistically
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  time.Minute,
//	})
//
//	retry := resilience.NewRetry(resilience.RetryPolicy{
//	    MaxRetries:    3,
//	    BaseDelay:     time.Second,
//	    MaxDelay:      10 * time.Second,
//	    BackoffFactor: 2,
//	})
//
//	// The breaker wraps the retry loop, so one exhausted burst of retries
//	// counts as a single breaker failure.
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := executor.Execute(ctx, "posts", func(ctx context.Context) error {
//	    return fetchFromCMS(ctx)
//	})
package resilience
