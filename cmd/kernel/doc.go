// Package main boots the process lifecycle kernel.
//
// The kernel starts the processes of the boot plan (or the init program),
// then serves the introspection API until it is signalled. With -serve=false
// it exits as soon as every process has exited.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Remaining arguments are passed to the init program
//
// Usage:
//
//	# Run init over two programs and serve the API
//	./kernel -port 8000 /bin/true /bin/forktree
//
//	# Boot from a plan and host program manifests, exit when idle
//	./kernel -programs ./programs -boot boot.toml -serve=false
//
//	# Development mode (colored logs, debug level)
//	./kernel -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
