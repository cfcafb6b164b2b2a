// Package sinks holds the progress.Sink implementations: structured logging
// and Prometheus collectors.
package sinks
