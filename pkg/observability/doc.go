// Package observability provides structured logging, Prometheus metrics,
// and health probes for the auth service.
package observability
