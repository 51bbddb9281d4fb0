package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/contentops/auth"
	"github.com/jonwraymond/contentops/content"
	"github.com/jonwraymond/contentops/observe"
	"github.com/jonwraymond/contentops/resilience"
)

type handlers struct {
	svc    *content.Service
	logger observe.Logger
}

type errorBody struct {
	Error     string `json:"error"`
	Status    string `json:"status,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (h *handlers) listPosts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	opts.Category = r.URL.Query().Get("category")

	env, err := h.svc.ListPosts(r.Context(), opts)
	respond(w, r, env, env.Source, err)
}

func (h *handlers) getPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" || slug != content.Slugify(slug) {
		h.badRequest(w, r, fmt.Errorf("invalid slug %q", slug))
		return
	}

	env, err := h.svc.GetPost(r.Context(), slug)
	respond(w, r, env, env.Source, err)
}

func (h *handlers) listCaseStudies(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	opts.Industry = r.URL.Query().Get("industry")

	env, err := h.svc.ListCaseStudies(r.Context(), opts)
	respond(w, r, env, env.Source, err)
}

func (h *handlers) resetBreaker(w http.ResponseWriter, r *http.Request) {
	client := h.svc.Client()
	before := client.BreakerState()
	client.ResetCircuitBreaker()

	h.logger.Info(r.Context(), "circuit breaker reset",
		observe.Field{Key: "principal", Value: auth.PrincipalFromContext(r.Context())},
		observe.Field{Key: "previous_state", Value: before.String()},
		observe.Field{Key: "request_id", Value: content.RequestID(r.Context())},
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: content.RequestID(r.Context())})
}

func listOptions(r *http.Request) (content.ListOptions, error) {
	var opts content.ListOptions
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("limit must be a positive integer, got %q", v)
		}
		opts.Limit = n
	}
	return opts, nil
}

// respond writes a successful envelope, or maps err to a status:
// 404 when no source has the document, 504 when the request itself was
// cancelled or timed out, 503 when the breaker rejected the
// primary read and the legacy source failed too, 502 for other double
// failures.
func respond(w http.ResponseWriter, r *http.Request, env json.Marshaler, source content.Source, err error) {
	requestID := content.RequestID(r.Context())
	if err == nil {
		w.Header().Set(SourceHeader, string(source))
		writeJSON(w, http.StatusOK, env)
		return
	}

	switch {
	case content.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", RequestID: requestID})
	case r.Context().Err() != nil:
		// Only the request's own deadline is a timeout; a per-attempt
		// timeout inside a failed fallback is a gateway failure.
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "request timed out", RequestID: requestID})
	case resilience.IsCircuitOpen(err):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Status: "degraded", RequestID: requestID})
	default:
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), RequestID: requestID})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
