// Package progress carries scrape lifecycle events from workers to sinks.
// Emitting never blocks; a background goroutine batches events and hands them
// to each registered Sink.
package progress
