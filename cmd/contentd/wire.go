package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonwraymond/contentops/auth"
	"github.com/jonwraymond/contentops/cache"
	"github.com/jonwraymond/contentops/cms"
	"github.com/jonwraymond/contentops/config"
	"github.com/jonwraymond/contentops/content"
	"github.com/jonwraymond/contentops/health"
	"github.com/jonwraymond/contentops/legacy"
	"github.com/jonwraymond/contentops/observe"
	"github.com/jonwraymond/contentops/resilience"
	"github.com/jonwraymond/contentops/server"
)

// app holds every component built from one Config.
type app struct {
	cfg      *config.Config
	observer observe.Observer
	logger   observe.Logger
	client   *content.Client
	service  *content.Service
	monitor  *health.Monitor
	agg      *health.Aggregator
	handler  http.Handler
	closers  []io.Closer
}

// build wires the components. Nothing is shared through globals; each
// dependency is passed to the component that uses it.
func build(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	a.observer, err = observe.NewObserver(ctx, cfg.Observe.Observer(version))
	if err != nil {
		return nil, err
	}
	a.logger = a.observer.Logger().With(observe.Field{Key: "version", Value: version})

	mw, err := observe.MiddlewareFromObserver(a.observer)
	if err != nil {
		return nil, err
	}
	metrics := mw.Metrics()

	cmsClient, err := cms.New(cfg.Sanity.Client("contentd/" + version))
	if err != nil {
		return nil, err
	}
	legacyClient, err := legacy.New(cfg.Legacy.Client())
	if err != nil {
		return nil, err
	}

	policy := cfg.Retry.Policy()
	policy.OnRetry = func(label string, attempt int, cerr *resilience.ClassifiedError, delay time.Duration) {
		a.logger.Warn(context.Background(), "retrying primary read",
			observe.Field{Key: "label", Value: label},
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "kind", Value: cerr.Kind.String()},
			observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
		)
	}
	exec := resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(
			cfg.Breaker.CircuitBreaker(content.BreakerObserver("sanity", a.logger, metrics)),
		)),
		resilience.WithRetry(resilience.NewRetry(policy)),
		resilience.WithTimeout(cfg.Retry.AttemptTimeout),
	)

	a.agg = health.NewAggregator(cfg.Health.Aggregator())

	cacheMW, err := a.buildCache(ctx, metrics)
	if err != nil {
		return nil, err
	}

	a.client = content.NewClient(cmsClient,
		content.WithExecutor(exec),
		content.WithCache(cacheMW),
		content.WithMiddleware(mw),
	)
	a.service = content.NewService(a.client, legacyClient, content.NewFallback(a.logger, metrics))

	a.monitor = health.NewMonitor(a.client, cfg.Health.Monitor(a.logger))
	a.agg.Register(a.monitor.Name(), a.monitor)

	var verifier *auth.JWTVerifier
	if cfg.AdminEnabled() {
		verifier, err = auth.NewJWTVerifier(adminJWTConfig(cfg))
		if err != nil {
			return nil, err
		}
	}

	a.handler = server.New(server.Options{
		Service:        a.service,
		Monitor:        a.monitor,
		Aggregator:     a.agg,
		Verifier:       verifier,
		Logger:         a.logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
	})
	return a, nil
}

// buildCache returns nil when caching is disabled.
func (a *app) buildCache(ctx context.Context, metrics observe.Metrics) (*cache.CacheMiddleware, error) {
	var store cache.Cache
	switch a.cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, a.cfg.Cache.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc)
		a.agg.Register("cache", health.NewPingChecker("cache", rc, health.PingCheckerConfig{}))
		store = rc
	default:
		store = cache.NewMemoryCache(a.cfg.Cache.MaxEntries)
	}

	m := cache.NewCacheMiddleware(store, nil, a.cfg.Cache.Policy(), nil)
	m.OnLookup(metrics.RecordCacheLookup)
	return m, nil
}

func adminJWTConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Secret:   []byte(cfg.Admin.JWTSecret),
		Issuer:   cfg.Admin.Issuer,
		Audience: cfg.Admin.Audience,
		Leeway:   30 * time.Second,
	}
}

// close releases everything build acquired.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.monitor != nil {
		errs = append(errs, a.monitor.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.observer != nil {
		errs = append(errs, a.observer.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("contentd: shutdown: %w", err)
	}
	return nil
}
