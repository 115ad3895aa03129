// Package config provides 12-factor configuration for the viewer.
//
// Configuration is loaded from environment variables with defaults, can be
// overlaid by a YAML or TOML file, and CLI flags override both.
//
// Configuration Sections:
//   - Server: browser-facing HTTP server (port, host)
//   - Backend: remote monitor backend URL, stream URL, TLS, timeouts
//   - Registry: monitor list refresh interval
//   - Acquire: stream or poll mode, poll cadence, reconnect policy
//   - View: still-image tile width clamp
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting of the viewer API
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Environment Variables:
//   - VIEWER_PORT, VIEWER_HOST
//   - BACKEND_URL, BACKEND_STREAM_URL, BACKEND_INSECURE_TLS, BACKEND_TIMEOUT, BACKEND_RPS
//   - REGISTRY_REFRESH
//   - ACQUIRE_MODE, POLL_INTERVAL, PRIMARY_ONLY, LEGACY_SINGLE, STREAM_RECONNECT_DELAY, MAX_FRAME_BYTES
//   - TILE_MIN_PERCENT, TILE_MAX_PERCENT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
