/*
Package monitoring provides Prometheus metrics for the display gate.

# Overview

Every Metrics value owns its own registry, so tests and embedded uses can
create as many collectors as they like without colliding on the global
default registerer.

# Tracked

- Phase transitions (from, to) and the current phase
- Controller events by type
- Remote config fetches by result, with latency
- Redirects, redirect loop recoveries and navigation failures
- Open popups and cookie persistence outcomes
- Connectivity transitions
- Control API requests (via Middleware)

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer()
	cfg, err := resolver.Fetch(ctx, req)
	metrics.RecordConfigFetch(resultOf(err), timer.Elapsed())
*/
package monitoring
