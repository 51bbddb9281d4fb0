package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is a component that can be pinged, such as the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheckerConfig configures a PingChecker.
type PingCheckerConfig struct {
	// Timeout bounds each ping.
	// Default: 2 seconds
	Timeout time.Duration

	// SlowThreshold marks a successful ping as degraded.
	// Default: 250 milliseconds
	SlowThreshold time.Duration
}

// PingChecker turns a Pinger into a Checker.
type PingChecker struct {
	name   string
	pinger Pinger
	config PingCheckerConfig
}

// NewPingChecker creates a checker that pings p.
func NewPingChecker(name string, p Pinger, config PingCheckerConfig) *PingChecker {
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if config.SlowThreshold <= 0 {
		config.SlowThreshold = 250 * time.Millisecond
	}
	return &PingChecker{name: name, pinger: p, config: config}
}

// Name returns the checker name.
func (c *PingChecker) Name() string {
	return c.name
}

// Check pings the component.
func (c *PingChecker) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	err := c.pinger.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		return Unhealthy(fmt.Sprintf("%s ping failed", c.name), fmt.Errorf("%w: %w", ErrCheckFailed, err)).
			WithDuration(elapsed)
	}

	details := map[string]any{"latency_ms": elapsed.Milliseconds()}
	if elapsed >= c.config.SlowThreshold {
		return Degraded(fmt.Sprintf("%s ping slow", c.name)).WithDetails(details).WithDuration(elapsed)
	}
	return Healthy(fmt.Sprintf("%s reachable", c.name)).WithDetails(details).WithDuration(elapsed)
}

var _ Checker = (*PingChecker)(nil)
