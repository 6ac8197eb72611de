// Package http provides the introspection API handlers.
//
// Endpoints:
//   - Health: / and /health
//   - Processes: GET /procs, GET /procs/:pid, POST /procs
//   - Tracing: GET /trace
//   - Metrics: GET /metrics/json (Prometheus exposition is served by the router)
//
// Kernel errors map onto HTTP statuses: a missing program is 404, a bad
// image 422, bad arguments 400 and exhausted tables 503. Error bodies carry
// the errno name.
package http
