package catalog

import (
	"errors"
	"fmt"
)

// ErrNoSitemapFound is returned when no candidate sitemap yields product URLs.
var ErrNoSitemapFound = errors.New("no product URLs found in any sitemap")

// DiscoveryError is fatal and stops a run before any worker starts.
type DiscoveryError struct {
	Site string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Site, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ExtractionError describes one failed attempt at a product page.
type ExtractionError struct {
	URL     string
	Attempt int
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("extract %s (attempt %d): %v", e.URL, e.Attempt, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// WriteError wraps failures to persist the export file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write export %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ResourceCleanupError reports a session that failed to close. It is logged,
// never propagated.
type ResourceCleanupError struct {
	Worker int
	Err    error
}

func (e *ResourceCleanupError) Error() string {
	return fmt.Sprintf("close session for worker %d: %v", e.Worker, e.Err)
}

func (e *ResourceCleanupError) Unwrap() error { return e.Err }
