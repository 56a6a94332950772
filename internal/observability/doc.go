// Package observability provides structured logging, Prometheus metrics, and
// request context propagation for the federated search service.
package observability
