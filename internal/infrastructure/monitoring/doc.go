/*
Package monitoring provides metrics collection for the bundle platform.

# Overview

Each platform instance owns a Metrics value backed by a private Prometheus
registry, so several runtimes can live in one process (and one test binary)
without colliding on the global default registry.

# Features

- Bundle lifecycle metrics (bundles per state, start results and durations)
- Code cache metrics (libraries staged or registered in place)
- Service registry metrics (registered services, events, get/unget calls)
- Extension registry metrics (points, extensions, pending extensions)
- Introspection HTTP request metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "org.example.core")
	err := activator.Start(ctx)
	timer.Stop(err)
*/
package monitoring
