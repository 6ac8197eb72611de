// Package config provides 12-factor configuration for the kernel.
//
// Configuration is loaded from environment variables with defaults. CLI
// flags can override environment variables.
//
// Configuration Sections:
//   - Server: introspection API settings (port, host)
//   - Kernel: process table, thread and page pool sizes
//   - Exec: argument count, byte and path limits
//   - Programs: host directory of program images
//   - Boot: TOML boot plan or the init program to start
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	plan, err := cfg.Boot.Resolve()
//
// Environment Variables:
//   - PORT, HOST
//   - KERNEL_PID_MIN, KERNEL_PROC_MAX, KERNEL_THREAD_MAX, KERNEL_MEM_PAGES
//   - EXEC_ARG_MAX, EXEC_ARG_BYTES, EXEC_PATH_MAX
//   - PROGRAM_DIR, PROGRAM_PATTERN
//   - BOOT_PLAN, INIT_PATH, INIT_ARGS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
