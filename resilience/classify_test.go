package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"
)

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

func TestClassify_PassThrough(t *testing.T) {
	original := &ClassifiedError{Kind: KindClientFault, Message: "bad query", StatusCode: 400}

	if got := Classify(original); got != original {
		t.Errorf("Classify(classified) = %p, want same pointer %p", got, original)
	}

	wrapped := fmt.Errorf("posts: %w", original)
	if got := Classify(wrapped); got != original {
		t.Errorf("Classify(wrapped classified) = %p, want %p", got, original)
	}
}

func TestClassify_Network(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}},
		{"dns", &net.DNSError{Err: "no such host", Name: "cms.invalid", IsNotFound: true}},
		{"errno reset", fmt.Errorf("read: %w", syscall.ECONNRESET)},
		{"attempt timeout", errors.Join(ErrTimeout, context.DeadlineExceeded)},
		{"deadline", context.DeadlineExceeded},
		{"message fetch failed", errors.New("TypeError: fetch failed")},
		{"message refused", errors.New("dial tcp 127.0.0.1:443: connect: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Kind != KindNetwork {
				t.Errorf("Kind = %v, want network", got.Kind)
			}
			if !got.Retryable() {
				t.Error("Retryable() = false, want true")
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the original")
			}
		})
	}
}

func TestClassify_ServerFaultRange(t *testing.T) {
	for code := 500; code <= 599; code++ {
		got := Classify(&StatusError{Code: code})
		if got.Kind != KindServerFault || !got.Retryable() {
			t.Errorf("status %d: Kind = %v retryable = %v, want server_fault/true", code, got.Kind, got.Retryable())
		}
		if got.StatusCode != code {
			t.Errorf("status %d: StatusCode = %d", code, got.StatusCode)
		}
	}
}

func TestClassify_ClientFaultRange(t *testing.T) {
	for code := 400; code <= 499; code++ {
		if code == http.StatusTooManyRequests {
			continue
		}
		got := Classify(&StatusError{Code: code})
		if got.Kind != KindClientFault || got.Retryable() {
			t.Errorf("status %d: Kind = %v retryable = %v, want client_fault/false", code, got.Kind, got.Retryable())
		}
	}
}

// Error bodies are free text; a transport phrase inside one must not turn a
// response into a network failure.
func TestClassify_StatusBeatsBodyText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"400 refused", NewStatusError(http.StatusBadRequest, "", `{"error":{"description":"upstream: connection refused"}}`), KindClientFault},
		{"404 no such host", NewStatusError(http.StatusNotFound, "", "no such host: cms.invalid"), KindClientFault},
		{"422 fetch failed", fmt.Errorf("query: %w", NewStatusError(http.StatusUnprocessableEntity, "", "fetch failed")), KindClientFault},
		{"503 reset", NewStatusError(http.StatusServiceUnavailable, "", "connection reset by peer"), KindServerFault},
		{"429 i/o timeout", NewStatusError(http.StatusTooManyRequests, "1", "i/o timeout"), KindRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.want)
			}
			if got.StatusCode == 0 {
				t.Error("StatusCode should be kept")
			}
			if tt.want == KindClientFault && got.Retryable() {
				t.Error("client faults are never retryable")
			}
		})
	}
}

func TestClassify_RateLimit(t *testing.T) {
	got := Classify(NewStatusError(http.StatusTooManyRequests, "2", ""))

	if got.Kind != KindRateLimit {
		t.Fatalf("Kind = %v, want rate_limit", got.Kind)
	}
	if !got.Retryable() {
		t.Error("Retryable() = false, want true")
	}
	if got.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", got.RetryAfter)
	}

	bare := Classify(NewStatusError(http.StatusTooManyRequests, "", ""))
	if bare.RetryAfter != 0 {
		t.Errorf("RetryAfter without header = %v, want 0", bare.RetryAfter)
	}
}

func TestClassify_Unknown(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain", errors.New("something odd")},
		{"redirect status", &StatusError{Code: 302}},
		{"breaker open", ErrCircuitOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Kind != KindUnknown {
				t.Errorf("Kind = %v, want unknown", got.Kind)
			}
			if !got.Retryable() {
				t.Error("unknown errors should be retryable")
			}
		})
	}

	if !IsCircuitOpen(Classify(ErrCircuitOpen)) {
		t.Error("classified breaker error should still match ErrCircuitOpen")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"empty", "", 0, false},
		{"seconds", "120", 2 * time.Minute, true},
		{"fractional", "1.5", 1500 * time.Millisecond, true},
		{"negative", "-1", 0, false},
		{"http date", now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second, true},
		{"past date", now.Add(-time.Hour).Format(http.TimeFormat), 0, true},
		{"garbage", "soon", 0, false},
		{"infinite", "Inf", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRetryAfter(tt.value, now)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = (%v, %v), want (%v, %v)", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
