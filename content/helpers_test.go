package content

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonwraymond/contentops/legacy"
	"github.com/jonwraymond/contentops/observe"
	"github.com/jonwraymond/contentops/resilience"
)

type queryResult struct {
	raw string
	err error
}

// fakeQuerier replays results in order, repeating the last one.
type fakeQuerier struct {
	mu      sync.Mutex
	results []queryResult
	calls   int
	queries []string
	params  []map[string]any

	// release, when set, blocks every query until closed.
	release chan struct{}
	started chan struct{}
}

func newFakeQuerier(results ...queryResult) *fakeQuerier {
	return &fakeQuerier{results: results}
}

func (q *fakeQuerier) Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	q.mu.Lock()
	i := q.calls
	q.calls++
	q.queries = append(q.queries, query)
	q.params = append(q.params, params)
	release, started := q.release, q.started
	q.started = nil
	q.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(q.results) == 0 {
		return json.RawMessage(`null`), nil
	}
	if i >= len(q.results) {
		i = len(q.results) - 1
	}
	r := q.results[i]
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.raw), nil
}

func (q *fakeQuerier) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func ok(raw string) queryResult { return queryResult{raw: raw} }

func fail(code int) queryResult { return queryResult{err: resilience.NewStatusError(code, "", "")} }

// fakeLegacy serves fixed records.
type fakeLegacy struct {
	mu      sync.Mutex
	posts   []legacy.Record
	studies []legacy.Record
	err     error
	filters []legacy.Filters
}

func (l *fakeLegacy) Posts(_ context.Context, f legacy.Filters) ([]legacy.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters = append(l.filters, f)
	return l.posts, l.err
}

func (l *fakeLegacy) CaseStudies(_ context.Context, f legacy.Filters) ([]legacy.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters = append(l.filters, f)
	return l.studies, l.err
}

// fakeMetrics counts fallbacks and breaker transitions.
type fakeMetrics struct {
	mu          sync.Mutex
	fallbacks   map[string]int
	transitions []string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{fallbacks: make(map[string]int)}
}

func (m *fakeMetrics) RecordFetch(context.Context, observe.FetchMeta, time.Duration, error) {}

func (m *fakeMetrics) RecordFallback(_ context.Context, label, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks[label+"/"+kind]++
}

func (m *fakeMetrics) RecordBreakerTransition(_ context.Context, backend, from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, backend+":"+from+"->"+to)
}

func (m *fakeMetrics) RecordCacheLookup(context.Context, bool) {}

// fastExecutor retries with millisecond delays and opens after threshold
// failures.
func fastExecutor(threshold, retries int) *resilience.Executor {
	return resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: threshold,
			RecoveryTimeout:  time.Hour,
		})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryPolicy{
			MaxRetries:    retries,
			BaseDelay:     time.Millisecond,
			MaxDelay:      2 * time.Millisecond,
			BackoffFactor: 2,
			Jitter:        -1,
		})),
		resilience.WithTimeout(time.Second),
	)
}

const (
	samplePost = `{"_id":"post-1","title":"Screening 101","slug":"screening-101","author":"Dana","publishedAt":"2026-02-01T10:00:00Z","category":"Compliance","tags":["FCRA"]}`
	sampleCase = `{"_id":"cs-1","title":"Faster hiring","slug":"faster-hiring","client":"Acme","industry":"Healthcare"}`
)
