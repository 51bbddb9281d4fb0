package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures the retry behavior.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero means a single attempt. Negative values are treated as zero.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	// Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps every delay, including server-requested ones.
	// Default: 10s
	MaxDelay time.Duration

	// BackoffFactor is the exponential growth factor. Must be > 1.
	// Default: 2.0
	BackoffFactor float64

	// Jitter is the maximum random fraction added on top of the backoff.
	// Negative disables jitter.
	// Default: 0.10
	Jitter float64

	// RetryableKinds lists the kinds that may be retried.
	// Default: every kind whose Retryable() is true.
	RetryableKinds []Kind

	// OnRetry is called before each wait. It must not block.
	OnRetry func(label string, attempt int, err *ClassifiedError, delay time.Duration)
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.10,
	}
}

// DefaultRetryableKinds returns the kinds retried by default.
func DefaultRetryableKinds() []Kind {
	return []Kind{KindNetwork, KindRateLimit, KindServerFault, KindUnknown}
}

// Retry re-invokes failing operations with exponential backoff.
type Retry struct {
	policy    RetryPolicy
	retryable map[Kind]bool

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetry creates a new retry handler.
func NewRetry(policy RetryPolicy) *Retry {
	// Apply defaults
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 10 * time.Second
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	if policy.BackoffFactor <= 1 {
		policy.BackoffFactor = 2.0
	}
	switch {
	case policy.Jitter < 0:
		policy.Jitter = 0
	case policy.Jitter == 0 || policy.Jitter > 1:
		policy.Jitter = 0.10
	}
	if policy.RetryableKinds == nil {
		policy.RetryableKinds = DefaultRetryableKinds()
	}

	retryable := make(map[Kind]bool, len(policy.RetryableKinds))
	for _, k := range policy.RetryableKinds {
		// A client fault can never succeed on retry, whatever the policy says.
		if k.Retryable() {
			retryable[k] = true
		}
	}

	return &Retry{policy: policy, retryable: retryable, sleep: sleepContext}
}

// Execute runs op until it succeeds, fails with a non-retryable error, or
// exhausts MaxRetries+1 attempts. The returned error is the last
// *ClassifiedError, or ctx.Err() when the context ends first.
func (r *Retry) Execute(ctx context.Context, label string, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		// A cancelled caller is not a backend failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		classified := Classify(err)
		if attempt >= r.policy.MaxRetries || !r.retryable[classified.Kind] {
			return classified
		}

		delay := r.delay(attempt, classified)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(label, attempt+1, classified, delay)
		}

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// delay computes the wait before the retry following attempt (0-based).
func (r *Retry) delay(attempt int, err *ClassifiedError) time.Duration {
	if err.RetryAfter > 0 {
		return min(err.RetryAfter, r.policy.MaxDelay)
	}

	backoff := float64(r.policy.BaseDelay) * math.Pow(r.policy.BackoffFactor, float64(attempt))
	if r.policy.Jitter > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		backoff += backoff * r.policy.Jitter * rand.Float64()
	}
	if backoff > float64(r.policy.MaxDelay) {
		return r.policy.MaxDelay
	}
	return time.Duration(backoff)
}

// Policy returns the effective retry policy.
func (r *Retry) Policy() RetryPolicy {
	return r.policy
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
