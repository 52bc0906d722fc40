// Package sinks implements concrete progress consumers: Prometheus render
// metrics, structured logging, and an in-memory tracker of each record's latest
// render outcome. Each sink satisfies the progress.Sink interface and is safe
// for repeated Consume/Close cycles.
package sinks
