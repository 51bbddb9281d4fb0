package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/jonwraymond/contentops/cache"
)

// EnvPrefix prefixes every environment override, e.g.
// CONTENTOPS_SANITY_TOKEN or CONTENTOPS_BREAKER_FAILURE_THRESHOLD.
const EnvPrefix = "CONTENTOPS"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full contentd configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Sanity  SanityConfig  `yaml:"sanity" envconfig:"SANITY"`
	Legacy  LegacyConfig  `yaml:"legacy" envconfig:"LEGACY"`
	Retry   RetryConfig   `yaml:"retry" envconfig:"RETRY"`
	Breaker BreakerConfig `yaml:"breaker" envconfig:"BREAKER"`
	Health  HealthConfig  `yaml:"health" envconfig:"HEALTH"`
	Cache   CacheConfig   `yaml:"cache" envconfig:"CACHE"`
	Observe ObserveConfig `yaml:"observe" envconfig:"OBSERVE"`
	Admin   AdminConfig   `yaml:"admin" envconfig:"ADMIN"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0" split_words:"true"`

	// AllowedOrigins enables CORS for the site's origins.
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,url" split_words:"true"`
}

// SanityConfig configures the primary CMS client.
type SanityConfig struct {
	ProjectID  string        `yaml:"project_id" validate:"required" split_words:"true"`
	Dataset    string        `yaml:"dataset" validate:"required"`
	APIVersion string        `yaml:"api_version" validate:"required" split_words:"true"`
	Token      string        `yaml:"token"`
	UseCDN     bool          `yaml:"use_cdn" split_words:"true"`
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url" split_words:"true"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LegacyConfig configures the fallback API client.
type LegacyConfig struct {
	BaseURL         string        `yaml:"base_url" validate:"required,url" split_words:"true"`
	APIKey          string        `yaml:"api_key" split_words:"true"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	PostsPath       string        `yaml:"posts_path" validate:"required,startswith=/" split_words:"true"`
	CaseStudiesPath string        `yaml:"case_studies_path" validate:"required,startswith=/" split_words:"true"`
}

// RetryConfig configures retries of primary reads. A zero MaxRetries or
// Jitter takes the default; -1 disables retries or jitter.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries" validate:"gte=-1,lte=10" split_words:"true"`
	BaseDelay      time.Duration `yaml:"base_delay" validate:"gt=0" split_words:"true"`
	MaxDelay       time.Duration `yaml:"max_delay" validate:"gtefield=BaseDelay" split_words:"true"`
	BackoffFactor  float64       `yaml:"backoff_factor" validate:"gt=1" split_words:"true"`
	Jitter         float64       `yaml:"jitter" validate:"gte=-1,lte=1"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"gt=0" split_words:"true"`

	// RetryUnknown keeps unclassifiable failures retryable. Default: true.
	RetryUnknown *bool `yaml:"retry_unknown" envconfig:"UNKNOWN"`
}

// BreakerConfig configures the primary source's circuit breaker.
type BreakerConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold" validate:"gte=1" split_words:"true"`
	RecoveryTimeout   time.Duration `yaml:"recovery_timeout" validate:"gt=0" split_words:"true"`
	SuccessThreshold  int           `yaml:"success_threshold" validate:"gte=1" split_words:"true"`
	HalfOpenMaxProbes int           `yaml:"half_open_max_probes" validate:"gte=1" split_words:"true"`
}

// HealthConfig configures the primary source monitor.
type HealthConfig struct {
	Interval          time.Duration `yaml:"interval" validate:"gt=0"`
	DegradedThreshold time.Duration `yaml:"degraded_threshold" validate:"gt=0" split_words:"true"`
	ProbeQuery        string        `yaml:"probe_query" validate:"required" split_words:"true"`
	CheckTimeout      time.Duration `yaml:"check_timeout" validate:"gt=0" split_words:"true"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Backend    string            `yaml:"backend" validate:"oneof=memory redis none"`
	TTL        time.Duration     `yaml:"ttl" validate:"gte=0"`
	MaxTTL     time.Duration     `yaml:"max_ttl" validate:"gte=0" split_words:"true"`
	MaxEntries int               `yaml:"max_entries" validate:"gte=0" split_words:"true"`
	Redis      cache.RedisConfig `yaml:"redis" envconfig:"REDIS"`
}

// ObserveConfig configures tracing, metrics and logging.
type ObserveConfig struct {
	ServiceName     string  `yaml:"service_name" validate:"required" split_words:"true"`
	TracingEnabled  bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	TracingExporter string  `yaml:"tracing_exporter" envconfig:"TRACING_EXPORTER" validate:"oneof=otlp stdout none"`
	SamplePct       float64 `yaml:"sample_pct" envconfig:"SAMPLE_PCT" validate:"gte=0,lte=1"`
	MetricsEnabled  *bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	MetricsExporter string  `yaml:"metrics_exporter" envconfig:"METRICS_EXPORTER" validate:"oneof=otlp prometheus stdout none"`
	LogLevel        string  `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// AdminConfig protects the admin endpoints. An empty JWTSecret disables them.
type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret" envconfig:"JWT_SECRET" validate:"omitempty,min=32"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// Load reads configuration from path. Each envFile is loaded into the
// process environment first, without overriding variables already set;
// missing env files are skipped. With no envFiles, ".env" is tried. An empty
// path skips the YAML step.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to load %s: %w", f, err)
		}
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes plus the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to apply environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.Server.Addr, ":8080")
	setDefault(&c.Server.ReadTimeout, 10*time.Second)
	setDefault(&c.Server.WriteTimeout, 30*time.Second)
	setDefault(&c.Server.ShutdownTimeout, 15*time.Second)

	setDefault(&c.Sanity.Dataset, "production")
	setDefault(&c.Sanity.APIVersion, "2024-01-01")
	setDefault(&c.Sanity.Timeout, 30*time.Second)

	setDefault(&c.Legacy.Timeout, 15*time.Second)
	setDefault(&c.Legacy.PostsPath, "/api/posts")
	setDefault(&c.Legacy.CaseStudiesPath, "/api/case-studies")

	setDefault(&c.Retry.MaxRetries, 3)
	setDefault(&c.Retry.BaseDelay, time.Second)
	setDefault(&c.Retry.MaxDelay, 10*time.Second)
	setDefault(&c.Retry.BackoffFactor, 2.0)
	setDefault(&c.Retry.Jitter, 0.10)
	setDefault(&c.Retry.AttemptTimeout, 10*time.Second)
	if c.Retry.RetryUnknown == nil {
		c.Retry.RetryUnknown = ptr(true)
	}

	setDefault(&c.Breaker.FailureThreshold, 5)
	setDefault(&c.Breaker.RecoveryTimeout, 60*time.Second)
	setDefault(&c.Breaker.SuccessThreshold, 2)
	setDefault(&c.Breaker.HalfOpenMaxProbes, 1)

	setDefault(&c.Health.Interval, 60*time.Second)
	setDefault(&c.Health.DegradedThreshold, 2*time.Second)
	setDefault(&c.Health.ProbeQuery, `*[_type == "post"][0]._id`)
	setDefault(&c.Health.CheckTimeout, 10*time.Second)

	setDefault(&c.Cache.Backend, "memory")
	setDefault(&c.Cache.TTL, time.Minute)
	setDefault(&c.Cache.MaxTTL, 10*time.Minute)
	setDefault(&c.Cache.MaxEntries, 1000)
	setDefault(&c.Cache.Redis.Prefix, "contentops:")

	setDefault(&c.Observe.ServiceName, "contentd")
	setDefault(&c.Observe.TracingExporter, "none")
	setDefault(&c.Observe.SamplePct, 1.0)
	setDefault(&c.Observe.MetricsExporter, "prometheus")
	setDefault(&c.Observe.LogLevel, "info")
	if c.Observe.MetricsEnabled == nil {
		c.Observe.MetricsEnabled = ptr(true)
	}
}

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldPath(fe)+": "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.URL == "" {
		return fmt.Errorf("%w: cache.redis.url: required for the redis backend", ErrInvalidConfig)
	}
	return nil
}

// AdminEnabled reports whether the admin endpoints are served.
func (c *Config) AdminEnabled() bool {
	return c.Admin.JWTSecret != ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// fieldPath renders "Config.sanity.project_id" as "sanity.project_id".
func fieldPath(fe validator.FieldError) string {
	_, path, _ := strings.Cut(fe.Namespace(), ".")
	return path
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

func ptr[T any](v T) *T {
	return &v
}
