/*
Package monitoring provides Prometheus metrics for the viewer.

# Overview

Metrics live on a private registry created by NewMetrics, so several
collectors can coexist in one process (tests, embedded servers). Every
recording method is safe on a nil *Metrics.

Tracked:
  - HTTP requests served to browsers
  - monitor list refreshes and size
  - selection changes and per-screen connection transitions
  - frames received, rendered, dropped and failed
  - backend request latency and breaker trips
  - connected viewers on the push channel

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "list_monitors")
	// ... call backend ...
	timer.Stop()
*/
package monitoring
