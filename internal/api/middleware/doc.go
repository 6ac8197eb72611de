// Package middleware provides the HTTP middleware of the introspection API.
//
//   - CORS: cross-origin access with configurable origins and exposed trace headers
//   - RateLimit: per-IP token buckets; idle clients are forgotten after IdleTTL
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
