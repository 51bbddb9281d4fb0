package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/contentops/health"
	"github.com/jonwraymond/contentops/resilience"
)

// staticProber always answers the same way.
type staticProber struct {
	err error
}

func (p staticProber) FetchUncached(context.Context, string, map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`"post-1"`), p.err
}

func (p staticProber) BreakerState() resilience.State {
	if p.err != nil {
		return resilience.StateOpen
	}
	return resilience.StateClosed
}

func ExampleDeriveStatus() {
	threshold := 2 * time.Second
	fmt.Println(health.DeriveStatus(1999*time.Millisecond, nil, threshold))
	fmt.Println(health.DeriveStatus(2000*time.Millisecond, nil, threshold))
	fmt.Println(health.DeriveStatus(0, errors.New("http status 503"), threshold))
	// Output:
	// healthy
	// degraded
	// unhealthy
}

func ExampleMonitor_CheckHealth() {
	mon := health.NewMonitor(staticProber{err: resilience.ErrCircuitOpen}, health.MonitorConfig{})

	snap := mon.CheckHealth(context.Background())
	fmt.Println(snap.Status, snap.CircuitState)
	// Output:
	// unhealthy open
}

func ExampleAggregator() {
	mon := health.NewMonitor(staticProber{}, health.MonitorConfig{})

	agg := health.NewAggregator()
	agg.Register("sanity", mon)
	agg.Register("cache", health.NewCheckerFunc("cache", func(context.Context) health.Result {
		return health.Degraded("cache slow")
	}))

	results := agg.CheckAll(context.Background())
	fmt.Println(results["sanity"].Status)
	fmt.Println(agg.OverallStatus(results))
	// Output:
	// healthy
	// degraded
}
