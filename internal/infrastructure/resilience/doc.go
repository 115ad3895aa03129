/*
Package resilience provides the circuit breaker that guards calls to the
remote monitor backend.

# Overview

When the backend goes away the registry keeps polling the monitor list and
poll-mode acquisition keeps requesting frames. The breaker turns a run of
failures into fast ErrCircuitOpen results until the backend has had time
to recover, so the viewer keeps showing its last known state instead of
stacking up timed-out requests. The client keeps one breaker per endpoint,
so a single failing screen only fails fast on its own path.

# Usage

	breaker := resilience.New("backend", resilience.DefaultSettings())

	monitors, err := resilience.Do(ctx, breaker, func(ctx context.Context) (types.MonitorList, error) {
		return fetch(ctx)
	})

# States

  - Closed: requests pass through
  - Open: requests fail immediately with ErrCircuitOpen
  - Half-Open: up to MaxRequests trial requests are let through

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open

A cancelled request context is not counted as a backend failure.
*/
package resilience
