// Package render turns records into post markup. An Orchestrator drives each
// record's ordered strategy list (official embed first, then scraper or API
// fallbacks) and writes the outcome into that record's container on a Board:
// embed markup, a post card, or a placeholder linking to the original post.
//
// A Board is rebuilt on every list render. Rebuilding tears the previous board
// down, which cancels its in-flight attempts; an attempt whose container has
// vanished stops without writing anything and reports StateCanceled.
package render
