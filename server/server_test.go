package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/contentops/auth"
	"github.com/jonwraymond/contentops/content"
	"github.com/jonwraymond/contentops/health"
	"github.com/jonwraymond/contentops/legacy"
	"github.com/jonwraymond/contentops/observe"
	"github.com/jonwraymond/contentops/resilience"
)

var adminSecret = []byte("0123456789abcdef0123456789abcdef")

// stubCMS answers every query with the same result.
type stubCMS struct {
	mu  sync.Mutex
	raw string
	err error
}

func (s *stubCMS) set(raw string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw, s.err = raw, err
}

func (s *stubCMS) Query(context.Context, string, map[string]any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.raw), nil
}

// legacyAPI serves fixed bodies for the legacy endpoints; status 0 means 200.
type legacyAPI struct {
	mu     sync.Mutex
	status int
	posts  string
}

func (l *legacyAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != 0 {
		w.WriteHeader(l.status)
		return
	}
	switch r.URL.Path {
	case "/api/posts":
		_, _ = w.Write([]byte(l.posts))
	default:
		_, _ = w.Write([]byte(`{"data":[]}`))
	}
}

func (l *legacyAPI) fail(status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = status
}

type fixture struct {
	handler http.Handler
	cms     *stubCMS
	legacy  *legacyAPI
	client  *content.Client
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cms := &stubCMS{raw: `[{"_id":"p1","title":"Hello","slug":"hello","tags":["News"]}]`}
	api := &legacyAPI{posts: `[{"id":"old-1","headline":"From the archive"}]`}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	lc, err := legacy.New(legacy.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	client := content.NewClient(cms, content.WithExecutor(resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 1,
			RecoveryTimeout:  time.Hour,
		})),
	)))
	monitor := health.NewMonitor(client, health.MonitorConfig{})
	t.Cleanup(func() { _ = monitor.Close() })

	agg := health.NewAggregator()
	agg.Register(monitor.Name(), monitor)

	verifier, err := auth.NewJWTVerifier(auth.JWTConfig{Secret: adminSecret})
	require.NoError(t, err)

	var logs bytes.Buffer
	h := New(Options{
		Service:        content.NewService(client, lc, nil),
		Monitor:        monitor,
		Aggregator:     agg,
		Verifier:       verifier,
		Logger:         observe.NewLoggerWithWriter("debug", &logs),
		Metrics:        http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics\n")) }),
		AllowedOrigins: []string{"https://www.example.com"},
	})
	return &fixture{handler: h, cms: cms, legacy: api, client: client, logs: &logs}
}

func (f *fixture) do(t *testing.T, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func adminHeader(t *testing.T, roles ...string) http.Header {
	t.Helper()
	token, err := auth.Sign(auth.JWTConfig{Secret: adminSecret}, "ops", roles, time.Minute)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestListPosts_Primary(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/posts?limit=5", http.Header{RequestIDHeader: {"req-42"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sanity", rec.Header().Get(SourceHeader))
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	body := decode(t, rec)
	assert.Equal(t, "sanity", body["source"])
	assert.Equal(t, "req-42", body["requestId"])
	assert.Contains(t, body, "error")
	assert.Nil(t, body["error"])
	posts := body["data"].([]any)
	require.Len(t, posts, 1)
	assert.Equal(t, "hello", posts[0].(map[string]any)["slug"])
}

func TestListPosts_LegacyFallback(t *testing.T) {
	f := newFixture(t)
	f.cms.set("", resilience.NewStatusError(http.StatusServiceUnavailable, "", ""))

	rec := f.do(t, http.MethodGet, "/api/posts", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "legacy", rec.Header().Get(SourceHeader))
	body := decode(t, rec)
	assert.Equal(t, "legacy", body["source"])
	assert.Contains(t, body, "error")
	assert.Nil(t, body["error"], "a legacy answer is not an error")

	post := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "From the archive", post["title"])
	assert.Equal(t, []any{"General"}, post["tags"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestGetPost(t *testing.T) {
	f := newFixture(t)
	f.cms.set(`{"_id":"p1","title":"Hello","slug":"hello"}`, nil)

	rec := f.do(t, http.MethodGet, "/api/posts/hello", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", decode(t, rec)["data"].(map[string]any)["_id"])

	f.cms.set(`null`, nil)
	rec = f.do(t, http.MethodGet, "/api/posts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode(t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/api/posts/Not-A-Slug", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBothSourcesDown(t *testing.T) {
	f := newFixture(t)
	f.cms.set("", resilience.NewStatusError(http.StatusInternalServerError, "", ""))
	f.legacy.fail(http.StatusInternalServerError)

	rec := f.do(t, http.MethodGet, "/api/case-studies", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, resilience.StateOpen, f.client.BreakerState())

	rec = f.do(t, http.MethodGet, "/api/case-studies?industry=Retail", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["error"], "circuit breaker is open")

	assert.Contains(t, f.logs.String(), "request failed")
}

func TestAttemptTimeoutIsNotRequestTimeout(t *testing.T) {
	f := newFixture(t)
	f.cms.set("", errors.Join(resilience.ErrTimeout, context.DeadlineExceeded))
	f.legacy.fail(http.StatusInternalServerError)

	rec := f.do(t, http.MethodGet, "/api/posts", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotEqual(t, "request timed out", decode(t, rec)["error"])
}

func TestCancelledRequest(t *testing.T) {
	f := newFixture(t)
	f.legacy.fail(http.StatusInternalServerError)
	f.cms.set("", resilience.NewStatusError(http.StatusServiceUnavailable, "", ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/case-studies", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "request timed out", decode(t, rec)["error"])
}

func TestListOptionsValidation(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"limit=abc", "limit=0", "limit=-3"} {
		rec := f.do(t, http.MethodGet, "/api/posts?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "closed", body["circuitBreakerState"])

	rec = f.do(t, http.MethodPost, "/api/health/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "lastCheckedAt")

	rec = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["checks"], "sanity")
}

func TestAdminReset(t *testing.T) {
	f := newFixture(t)
	f.cms.set("", resilience.NewStatusError(http.StatusBadGateway, "", ""))
	f.do(t, http.MethodGet, "/api/posts", nil)
	require.Equal(t, resilience.StateOpen, f.client.BreakerState())

	rec := f.do(t, http.MethodPost, "/admin/circuit-breaker/reset", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/circuit-breaker/reset", adminHeader(t, "reader"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, resilience.StateOpen, f.client.BreakerState())

	rec = f.do(t, http.MethodPost, "/admin/circuit-breaker/reset", adminHeader(t, AdminRole))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, resilience.StateClosed, f.client.BreakerState())
	assert.Contains(t, f.logs.String(), "circuit breaker reset")
}

func TestAdminDisabledWithoutVerifier(t *testing.T) {
	h := New(Options{Service: content.NewService(content.NewClient(&stubCMS{}), nil, nil)})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/circuit-breaker/reset", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsAndCORS(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# metrics"))

	rec = f.do(t, http.MethodOptions, "/api/posts", http.Header{
		"Origin":                        {"https://www.example.com"},
		"Access-Control-Request-Method": {http.MethodGet},
	})
	assert.Equal(t, "https://www.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDGenerated(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("x", maxRequestIDLen+1)

	rec := f.do(t, http.MethodGet, "/nowhere", http.Header{RequestIDHeader: {long}})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	id := rec.Header().Get(RequestIDHeader)
	assert.NotEqual(t, long, id)
	assert.Equal(t, id, decode(t, rec)["requestId"])
}
