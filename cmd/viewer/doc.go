// Package main is the entry point for the monitor viewer.
//
// The viewer lists the monitors known to a remote monitor backend, lets an
// operator pick one in the browser and shows its screens live, either
// streamed over websockets or polled as still images.
//
// Architecture:
//
//	Browser ⇄ Viewer (REST + /stream) → Monitor backend (registry, images, ws)
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML/TOML file (-config)
//   - CLI flags (override both)
//
// Usage:
//
//	# Stream from a backend with a self-signed certificate
//	./viewer -backend https://monitors.local:8080 -insecure
//
//	# Poll still images every 500ms
//	./viewer -mode poll
//
//	# Development mode (colored logs, debug level)
//	./viewer -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
