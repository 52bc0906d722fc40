// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the render orchestrator uses to report attempt progress. It
// batches events on a background goroutine and fans them out to pluggable
// sinks such as structured logs, Prometheus metrics, or the in-memory status
// tracker behind the render status endpoint.
package progress
