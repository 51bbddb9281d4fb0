package resilience

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// networkPatterns are message fragments that identify transport failures
// surfaced as plain errors.
var networkPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"fetch failed",
	"i/o timeout",
	"tls handshake timeout",
	"broken pipe",
}

type httpStatuser interface {
	HTTPStatus() int
}

type retryAfterer interface {
	RetryAfter() time.Duration
}

// Classify maps a raw failure to a *ClassifiedError.
//
// Classify is pure and never panics. A nil error yields nil. An error that
// already wraps a *ClassifiedError is returned unchanged.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	// A response status outranks the message: error bodies may quote
	// transport phrases such as "connection refused".
	var statuser httpStatuser
	if errors.As(err, &statuser) && statuser.HTTPStatus() != 0 {
		code := statuser.HTTPStatus()
		ce := &ClassifiedError{
			Kind:       kindForStatus(code),
			Message:    err.Error(),
			StatusCode: code,
			Err:        err,
		}
		if ce.Kind == KindRateLimit {
			var ra retryAfterer
			if errors.As(err, &ra) && ra.RetryAfter() > 0 {
				ce.RetryAfter = ra.RetryAfter()
			}
		}
		return ce
	}

	if isNetworkError(err) {
		return &ClassifiedError{Kind: KindNetwork, Message: err.Error(), Err: err}
	}

	return &ClassifiedError{Kind: KindUnknown, Message: err.Error(), Err: err}
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code >= 500 && code <= 599:
		return KindServerFault
	case code >= 400 && code <= 499:
		return KindClientFault
	default:
		return KindUnknown
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ParseRetryAfter parses a Retry-After header value, either delta-seconds or
// an HTTP-date relative to now. The boolean is false when the value is absent
// or malformed. Dates in the past yield zero.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}
