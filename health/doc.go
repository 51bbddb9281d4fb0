// Package health reports the health of the content layer.
//
// A Monitor probes the primary CMS through the resilient client and derives a
// coarse Status from the outcome and latency:
//
//   - the probe succeeded in under DegradedThreshold: StatusHealthy
//   - the probe succeeded at or above DegradedThreshold: StatusDegraded
//   - the probe failed: StatusUnhealthy
//
// Every Snapshot carries the circuit breaker state, whatever the outcome.
//
// # Background Probing
//
// The first Subscribe starts a background loop that probes immediately and
// then every Interval. The last unsubscribe stops the loop and waits for it:
//
//	mon := health.NewMonitor(client, health.MonitorConfig{})
//	unsubscribe := mon.Subscribe(func(s health.Snapshot) {
//	    log.Printf("content source is %s", s.Status)
//	})
//	defer unsubscribe()
//
//	snap, ok := mon.Health() // latest cached snapshot
//
// # Aggregating Health Checks
//
// Monitor implements Checker, so it can be combined with other components in
// an Aggregator and served by the HTTP handlers:
//
//	agg := health.NewAggregator()
//	agg.Register("sanity", mon)
//	agg.Register("cache", health.NewPingChecker("cache", redisCache, health.PingCheckerConfig{}))
//
//	r := chi.NewRouter()
//	health.RegisterHandlers(r, agg)
package health
