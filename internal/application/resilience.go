package application

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	availabilityCheckInterval = 30 * time.Second
	guardedCallTimeout        = 5 * time.Second
)

// RemoteGuardConfig wires the process-wide resilience guard.
type RemoteGuardConfig struct {
	// Probe is the lightweight availability check, typically
	// RemoteBackend.Ping. Nil means checks optimistically report available
	// and failures are only ever detected by guarded calls.
	Probe func(ctx context.Context) error
	// PreferLocal makes the guard report unavailable without ever probing;
	// an explicit runtime policy, not a failure state.
	PreferLocal bool
	Logger      zerolog.Logger
	Metrics     *Metrics
}

// RemoteGuard tracks remote-backend availability for the whole process.
// State machine: unknown -> (successful check) -> available ->
// (failed/timed-out guarded call) -> unavailable -> (next successful check)
// -> available. ForceUnavailable enters unavailable from any state and is
// sticky until the next successful check.
type RemoteGuard struct {
	probe       func(ctx context.Context) error
	preferLocal bool
	logger      zerolog.Logger
	metrics     *Metrics

	mu          sync.Mutex
	available   bool
	checked     bool
	lastChecked time.Time
	now         func() time.Time
	callTimeout time.Duration
}

// NewRemoteGuard creates the guard. Construct one per process and share it.
func NewRemoteGuard(cfg RemoteGuardConfig) *RemoteGuard {
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics()
	}
	g := &RemoteGuard{
		probe:       cfg.Probe,
		preferLocal: cfg.PreferLocal,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         time.Now,
		callTimeout: guardedCallTimeout,
	}
	if cfg.PreferLocal {
		// Start pinned to local data; a browser-style "online" signal must
		// not flip this back, only an explicit re-check can.
		g.ForceUnavailable()
	}
	return g
}

// Available reports the current flag without probing.
func (g *RemoteGuard) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

// CheckAvailability probes the remote backend, rate-limited to once per 30
// seconds; within the window it reports the cached flag. In prefer-local
// mode it always reports unavailable and never probes.
func (g *RemoteGuard) CheckAvailability(ctx context.Context) bool {
	g.mu.Lock()
	if g.preferLocal {
		g.available = false
		g.checked = true
		g.mu.Unlock()
		return false
	}
	if g.checked && g.now().Sub(g.lastChecked) < availabilityCheckInterval {
		available := g.available
		g.mu.Unlock()
		return available
	}
	probe := g.probe
	g.mu.Unlock()

	// Without a probe, assume the backend is reachable until a guarded call
	// proves otherwise.
	available := true
	if probe != nil {
		probeCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		err := probe(probeCtx)
		cancel()
		if err != nil {
			g.logger.Warn().Err(err).Msg("Remote availability check failed")
			available = false
		}
	}

	g.mu.Lock()
	g.setAvailableLocked(available)
	g.checked = true
	g.lastChecked = g.now()
	g.mu.Unlock()
	return available
}

// ForceUnavailable pins the flag to unavailable. Used at startup in
// prefer-local mode and when the platform reports going offline. Sticky
// until the next successful CheckAvailability.
func (g *RemoteGuard) ForceUnavailable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setAvailableLocked(false)
	g.checked = true
	g.lastChecked = g.now()
}

func (g *RemoteGuard) setAvailableLocked(available bool) {
	if g.checked && g.available != available {
		g.metrics.AvailabilityFlips.Inc()
	}
	g.available = available
	if available {
		g.metrics.RemoteAvailable.Set(1)
	} else {
		g.metrics.RemoteAvailable.Set(0)
	}
}

// markDegraded records a failed guarded call.
func (g *RemoteGuard) markDegraded() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setAvailableLocked(false)
	g.checked = true
}

// ensureChecked resolves the initial unknown state with one real probe.
func (g *RemoteGuard) ensureChecked(ctx context.Context) {
	g.mu.Lock()
	checked := g.checked
	g.mu.Unlock()
	if !checked {
		g.CheckAvailability(ctx)
	}
}

// isConnectivityError classifies an error message as a connectivity problem
// rather than a remote-side fault. Classification only affects logging; any
// failure degrades the guard.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"timeout",
		"broken pipe",
		"server selection error",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Guarded runs op against the remote backend with the guard's protection:
// when the backend is considered unavailable the fallback runs immediately;
// otherwise op races a 5s timeout and any failure marks the backend
// unavailable before falling back. Errors from the fallback itself propagate
// to the caller, since no further degradation path exists at that point.
func Guarded[T any](ctx context.Context, g *RemoteGuard, op func(ctx context.Context) (T, error), fallback func(ctx context.Context) (T, error), label string) (T, error) {
	g.ensureChecked(ctx)

	if !g.Available() {
		g.metrics.GuardedFallbacks.WithLabelValues(label).Inc()
		return fallback(ctx)
	}

	type result struct {
		value T
		err   error
	}
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	results := make(chan result, 1)
	go func() {
		value, err := op(callCtx)
		results <- result{value, err}
	}()

	select {
	case res := <-results:
		if res.err == nil {
			return res.value, nil
		}
		if ctx.Err() != nil {
			// The caller walked away, the backend did nothing wrong.
			g.logger.Debug().Str("label", label).Msg("Caller canceled remote call, falling back without degrading")
			g.metrics.GuardedFallbacks.WithLabelValues(label).Inc()
			return fallback(ctx)
		}
		if isConnectivityError(res.err) {
			g.logger.Warn().Err(res.err).Str("label", label).Msg("Remote call hit connectivity problem, falling back to local data")
		} else {
			g.logger.Warn().Err(res.err).Str("label", label).Msg("Remote call failed, falling back to local data")
		}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Caller cancellation, not the guard's timeout. The operation
			// still runs to completion in the background and its effects
			// apply; availability stays untouched.
			g.logger.Debug().Str("label", label).Msg("Caller canceled remote call, falling back without degrading")
			g.metrics.GuardedFallbacks.WithLabelValues(label).Inc()
			return fallback(ctx)
		}
		g.logger.Warn().Str("label", label).Msg("Remote call timed out, falling back to local data")
	}

	g.markDegraded()
	g.metrics.GuardedFallbacks.WithLabelValues(label).Inc()
	return fallback(ctx)
}
