package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/contentops/observe"
	"github.com/jonwraymond/contentops/resilience"
)

// DefaultProbeQuery is a minimal GROQ query that touches the dataset without
// transferring documents.
const DefaultProbeQuery = `*[_type == "post"][0]._id`

// Prober is the resilient client the monitor probes through. FetchUncached
// must not be served from a cache.
type Prober interface {
	FetchUncached(ctx context.Context, query string, params map[string]any) (json.RawMessage, error)
	BreakerState() resilience.State
}

// Snapshot is the outcome of one probe. Each probe supersedes the previous
// snapshot.
type Snapshot struct {
	Status Status

	// ResponseTime is the probe latency. Zero when the probe failed.
	ResponseTime time.Duration

	CircuitState resilience.State
	CheckedAt    time.Time

	// Error is the probe failure, empty on success.
	Error string
}

type snapshotJSON struct {
	Status              Status           `json:"status"`
	ResponseTimeMs      *int64           `json:"responseTimeMs,omitempty"`
	CircuitBreakerState resilience.State `json:"circuitBreakerState"`
	LastCheckedAt       time.Time        `json:"lastCheckedAt"`
	Error               string           `json:"error,omitempty"`
}

// MarshalJSON renders the snapshot for the UI. responseTimeMs is omitted when
// the probe failed.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Status:              s.Status,
		CircuitBreakerState: s.CircuitState,
		LastCheckedAt:       s.CheckedAt.UTC(),
		Error:               s.Error,
	}
	if s.Error == "" {
		ms := s.ResponseTime.Milliseconds()
		out.ResponseTimeMs = &ms
	}
	return json.Marshal(out)
}

// DeriveStatus maps a probe outcome to a Status.
func DeriveStatus(elapsed time.Duration, err error, degradedThreshold time.Duration) Status {
	switch {
	case err != nil:
		return StatusUnhealthy
	case elapsed >= degradedThreshold:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Name is reported by the Checker implementation.
	// Default: "sanity"
	Name string

	// ProbeQuery is sent on every probe.
	// Default: DefaultProbeQuery
	ProbeQuery string

	// DegradedThreshold is the latency at which a successful probe counts as
	// degraded.
	// Default: 2 seconds
	DegradedThreshold time.Duration

	// Interval is the background probe period.
	// Default: 60 seconds
	Interval time.Duration

	// Logger receives probe failures. Optional.
	Logger observe.Logger
}

// Monitor periodically probes the primary content source and caches the
// latest Snapshot.
type Monitor struct {
	prober Prober
	config MonitorConfig
	logger observe.Logger
	now    func() time.Time

	mu     sync.RWMutex
	latest Snapshot
	has    bool

	subMu     sync.Mutex
	listeners map[uint64]func(Snapshot)
	nextID    uint64
	stop      context.CancelFunc
	done      chan struct{}
	closed    bool
}

// NewMonitor creates a monitor probing through p. No goroutine runs until the
// first Subscribe.
func NewMonitor(p Prober, config MonitorConfig) *Monitor {
	if config.Name == "" {
		config.Name = "sanity"
	}
	if config.ProbeQuery == "" {
		config.ProbeQuery = DefaultProbeQuery
	}
	if config.DegradedThreshold <= 0 {
		config.DegradedThreshold = 2 * time.Second
	}
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = observe.NewNopLogger()
	}

	return &Monitor{
		prober:    p,
		config:    config,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[uint64]func(Snapshot)),
	}
}

// CheckHealth probes the primary source, stores the result as the latest
// snapshot and notifies subscribers.
func (m *Monitor) CheckHealth(ctx context.Context) Snapshot {
	snap := m.probe(ctx)
	m.publish(snap)
	return snap
}

// Refresh forces a probe. It fails only after Close.
func (m *Monitor) Refresh(ctx context.Context) (Snapshot, error) {
	m.subMu.Lock()
	closed := m.closed
	m.subMu.Unlock()
	if closed {
		return Snapshot{}, ErrMonitorClosed
	}
	return m.CheckHealth(ctx), nil
}

// Health returns the latest snapshot. ok is false until the first probe
// completes.
func (m *Monitor) Health() (snap Snapshot, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.has
}

func (m *Monitor) probe(ctx context.Context) Snapshot {
	start := m.now()
	_, err := m.prober.FetchUncached(ctx, m.config.ProbeQuery, nil)
	end := m.now()
	elapsed := end.Sub(start)

	snap := Snapshot{
		Status:       DeriveStatus(elapsed, err, m.config.DegradedThreshold),
		CircuitState: m.prober.BreakerState(),
		CheckedAt:    end,
	}
	if err != nil {
		snap.Error = err.Error()
		m.logger.Warn(ctx, "health probe failed",
			observe.Field{Key: "error", Value: err},
			observe.Field{Key: "circuit_state", Value: snap.CircuitState.String()},
		)
	} else {
		snap.ResponseTime = elapsed
	}
	return snap
}

func (m *Monitor) publish(snap Snapshot) {
	m.mu.Lock()
	m.latest, m.has = snap, true
	m.mu.Unlock()

	m.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Subscribe registers fn for every new snapshot and returns its unsubscribe
// function. The first subscriber starts the background loop. The last
// unsubscribe stops it and waits for the loop goroutine to exit, so it must
// not be called from inside a listener. Unsubscribe is idempotent.
func (m *Monitor) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	if m.closed || fn == nil {
		return func() {}
	}

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	if m.stop == nil {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		m.stop, m.done = cancel, done
		go m.run(ctx, done)
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(id) })
	}
}

func (m *Monitor) unsubscribe(id uint64) {
	m.subMu.Lock()
	delete(m.listeners, id)
	var done chan struct{}
	if len(m.listeners) == 0 {
		done = m.stopLocked()
	}
	m.subMu.Unlock()

	if done != nil {
		<-done
	}
}

// stopLocked cancels the loop and returns the channel closed on its exit, or
// nil when no loop runs.
func (m *Monitor) stopLocked() chan struct{} {
	if m.stop == nil {
		return nil
	}
	m.stop()
	done := m.done
	m.stop, m.done = nil, nil
	return done
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	check := func() {
		snap := m.probe(ctx)
		// A probe cut short by shutdown says nothing about the backend.
		if ctx.Err() != nil {
			return
		}
		m.publish(snap)
	}

	check()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (m *Monitor) Subscribers() int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return len(m.listeners)
}

// Running reports whether the background loop is active.
func (m *Monitor) Running() bool {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return m.stop != nil
}

// Close stops the background loop, drops every subscriber and waits for the
// loop to exit. Safe to call more than once.
func (m *Monitor) Close() error {
	m.subMu.Lock()
	m.closed = true
	clear(m.listeners)
	done := m.stopLocked()
	m.subMu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}

// Name implements Checker.
func (m *Monitor) Name() string {
	return m.config.Name
}

// Check implements Checker. A snapshot younger than Interval is reused;
// otherwise a fresh probe runs.
func (m *Monitor) Check(ctx context.Context) Result {
	snap, ok := m.Health()
	if !ok || m.now().Sub(snap.CheckedAt) >= m.config.Interval {
		snap = m.CheckHealth(ctx)
	}

	details := map[string]any{"circuit_state": snap.CircuitState.String()}
	if snap.Error == "" {
		details["response_time_ms"] = snap.ResponseTime.Milliseconds()
	}

	var r Result
	switch snap.Status {
	case StatusHealthy:
		r = Healthy("probe succeeded")
	case StatusDegraded:
		r = Degraded(fmt.Sprintf("probe took %s", snap.ResponseTime))
	default:
		r = Unhealthy("probe failed", fmt.Errorf("%w: %s", ErrCheckFailed, snap.Error))
	}
	r.Timestamp = snap.CheckedAt
	return r.WithDetails(details).WithDuration(snap.ResponseTime)
}

var _ Checker = (*Monitor)(nil)
