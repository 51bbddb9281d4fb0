package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jonwraymond/contentops/content"
	"github.com/jonwraymond/contentops/observe"
)

// Response headers.
const (
	RequestIDHeader = "X-Request-ID"
	SourceHeader    = "X-Content-Source"
)

const maxRequestIDLen = 128

// requestID propagates the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(content.WithRequestID(r.Context(), id)))
	})
}

func accessLog(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := []observe.Field{
				{Key: "method", Value: r.Method},
				{Key: "path", Value: r.URL.Path},
				{Key: "status", Value: ww.Status()},
				{Key: "bytes", Value: ww.BytesWritten()},
				{Key: "duration_ms", Value: float64(time.Since(start).Microseconds()) / 1000},
				{Key: "request_id", Value: content.RequestID(r.Context())},
			}
			if src := ww.Header().Get(SourceHeader); src != "" {
				fields = append(fields, observe.Field{Key: "source", Value: src})
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Warn(r.Context(), "request failed", fields...)
				return
			}
			logger.Debug(r.Context(), "request served", fields...)
		})
	}
}
