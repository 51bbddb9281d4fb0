package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/contentops/auth"
	"github.com/jonwraymond/contentops/content"
	"github.com/jonwraymond/contentops/health"
	"github.com/jonwraymond/contentops/observe"
)

// AdminRole is the role the admin routes require.
const AdminRole = "admin"

// Options wires the server's dependencies.
type Options struct {
	Service    *content.Service
	Monitor    *health.Monitor
	Aggregator *health.Aggregator

	// Verifier guards /admin. Nil disables the admin routes.
	Verifier *auth.JWTVerifier

	// Logger receives access logs. Nil means no logging.
	Logger observe.Logger

	// Metrics serves /metrics. Nil means promhttp.Handler().
	Metrics http.Handler

	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string

	// RequestTimeout bounds each request.
	// Default: 30 seconds
	RequestTimeout time.Duration
}

// New builds the router.
func New(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = observe.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Aggregator == nil {
		opts.Aggregator = health.NewAggregator()
	}

	h := &handlers{svc: opts.Service, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog(opts.Logger))
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader, SourceHeader},
			MaxAge:         300,
		}))
	}

	health.RegisterHandlers(r, opts.Aggregator)
	r.Handle("/metrics", opts.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Get("/posts", h.listPosts)
		r.Get("/posts/{slug}", h.getPost)
		r.Get("/case-studies", h.listCaseStudies)
		if opts.Monitor != nil {
			r.Get("/health", health.SnapshotHandler(opts.Monitor))
			r.Post("/health/refresh", health.RefreshHandler(opts.Monitor))
		}
	})

	if opts.Verifier != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(opts.Verifier, AdminRole))
			r.Post("/circuit-breaker/reset", h.resetBreaker)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", RequestID: content.RequestID(r.Context())})
	})

	return r
}
