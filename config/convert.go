package config

import (
	"github.com/jonwraymond/contentops/cache"
	"github.com/jonwraymond/contentops/cms"
	"github.com/jonwraymond/contentops/health"
	"github.com/jonwraymond/contentops/legacy"
	"github.com/jonwraymond/contentops/observe"
	"github.com/jonwraymond/contentops/resilience"
)

// Client returns the cms client configuration.
func (c SanityConfig) Client(userAgent string) cms.Config {
	return cms.Config{
		ProjectID:  c.ProjectID,
		Dataset:    c.Dataset,
		APIVersion: c.APIVersion,
		Token:      c.Token,
		UseCDN:     c.UseCDN,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		UserAgent:  userAgent,
	}
}

// Client returns the legacy client configuration.
func (c LegacyConfig) Client() legacy.Config {
	return legacy.Config{
		BaseURL:         c.BaseURL,
		APIKey:          c.APIKey,
		Timeout:         c.Timeout,
		PostsPath:       c.PostsPath,
		CaseStudiesPath: c.CaseStudiesPath,
	}
}

// Policy returns the retry policy. With RetryUnknown false, failures the
// classifier cannot place are returned after the first attempt.
func (c RetryConfig) Policy() resilience.RetryPolicy {
	p := resilience.RetryPolicy{
		MaxRetries:    c.MaxRetries,
		BaseDelay:     c.BaseDelay,
		MaxDelay:      c.MaxDelay,
		BackoffFactor: c.BackoffFactor,
		Jitter:        c.Jitter,
	}
	if c.RetryUnknown != nil && !*c.RetryUnknown {
		p.RetryableKinds = []resilience.Kind{
			resilience.KindNetwork,
			resilience.KindRateLimit,
			resilience.KindServerFault,
		}
	}
	return p
}

// CircuitBreaker returns the breaker configuration. onChange may be nil.
func (c BreakerConfig) CircuitBreaker(onChange func(from, to resilience.State)) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold:  c.FailureThreshold,
		RecoveryTimeout:   c.RecoveryTimeout,
		SuccessThreshold:  c.SuccessThreshold,
		HalfOpenMaxProbes: c.HalfOpenMaxProbes,
		OnStateChange:     onChange,
	}
}

// Monitor returns the monitor configuration.
func (c HealthConfig) Monitor(logger observe.Logger) health.MonitorConfig {
	return health.MonitorConfig{
		ProbeQuery:        c.ProbeQuery,
		DegradedThreshold: c.DegradedThreshold,
		Interval:          c.Interval,
		Logger:            logger,
	}
}

// Aggregator returns the aggregator configuration.
func (c HealthConfig) Aggregator() health.AggregatorConfig {
	return health.AggregatorConfig{Timeout: c.CheckTimeout}
}

// Policy returns the cache policy. The "none" backend disables caching.
func (c CacheConfig) Policy() cache.Policy {
	if c.Backend == "none" {
		return cache.NoCachePolicy()
	}
	return cache.Policy{DefaultTTL: c.TTL, MaxTTL: c.MaxTTL}
}

// Observer returns the observe configuration for the given build version.
func (c ObserveConfig) Observer(version string) observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingEnabled,
			Exporter:  c.TracingExporter,
			SamplePct: c.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsEnabled == nil || *c.MetricsEnabled,
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}
