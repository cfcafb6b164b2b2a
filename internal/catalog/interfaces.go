package catalog

import "context"

// Session is a worker-owned page loader (a browser or an HTTP client). A
// session is never shared between workers.
type Session interface {
	Fetch(ctx context.Context, url string) (Page, error)
	Close() error
}

// SessionFactory opens one Session per worker.
type SessionFactory interface {
	Open(ctx context.Context) (Session, error)
}

// Extractor turns a product page into a ProductRecord.
type Extractor interface {
	Extract(ctx context.Context, session Session, url string) (*ProductRecord, error)
}

// Discoverer produces the ordered list of product page URLs for a site.
type Discoverer interface {
	Discover(ctx context.Context, siteRoot string) ([]string, error)
}

// ResultSink collects successfully extracted products.
type ResultSink interface {
	Append(product *ProductRecord)
}

// WorkQueue hands out product URLs to workers. Next removes the head
// atomically; RecordFailure counts a URL whose retries were exhausted.
type WorkQueue interface {
	Next() (string, bool)
	RecordFailure()
}
