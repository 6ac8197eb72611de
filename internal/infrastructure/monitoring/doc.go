/*
Package monitoring provides Prometheus metrics for the kernel.

# Overview

Metrics are registered on a caller-supplied prometheus.Registerer so tests and
embedders can keep separate registries. They cover system calls, the process
table, threads, the page pool and the introspection HTTP API.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time a system call
	timer := monitoring.NewTimer(metrics, "fork")
	// ... perform operation ...
	timer.Stop("ok")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
