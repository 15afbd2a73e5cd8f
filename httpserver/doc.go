// Package httpserver provides the HTTP server hosting the secret sharing
// service. It wires the authenticated admin handler and the public bulletin
// handler onto one chi router with request logging, exposes health
// (livez/readyz) and drain/undrain endpoints for load balancer coordination,
// optionally serves pprof under /debug, and runs a separate Prometheus
// metrics listener. Shutdown drains gracefully within the configured
// durations.
package httpserver
