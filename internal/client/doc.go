// Package client is the HTTP client for the remote monitor backend.
//
// It covers the request/response side of the backend:
//   - GET /monitors for the monitor registry
//   - GET /monitors/{address}/{screen}?r={token} for still images
//   - GET /monitors/{address}?{token} for single-screen backends
//
// Built on go-resty/resty with a go-retryablehttp round tripper, so
// transient failures are retried with backoff. Requests also pass through
// a token-bucket limiter and a circuit breaker per endpoint: one for the
// monitor list and one per address and screen for images. While a breaker
// is open, calls to its endpoint fail fast with ErrUnavailable; the other
// endpoints are unaffected.
//
// Example Usage:
//
//	c := client.New(client.DefaultConfig("https://10.0.0.5:8080"), log)
//	monitors, err := c.ListMonitors(ctx)
package client
