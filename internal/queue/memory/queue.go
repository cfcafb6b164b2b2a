// Package memory provides the in-process work queue shared by the worker pool.
package memory

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of queue progress.
type Stats struct {
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Remaining   int           `json:"remaining"`
	Failed      int           `json:"failed"`
	Elapsed     time.Duration `json:"elapsed"`
	SuccessRate float64       `json:"success_rate"`
}

// Queue is a FIFO of URLs guarded by a mutex. Every Next that returns a URL
// counts it as processed, whatever the outcome of the work.
type Queue struct {
	mu        sync.Mutex
	items     []string
	total     int
	processed int
	failed    int
	started   time.Time
	now       func() time.Time
}

// Option customizes a Queue.
type Option func(*Queue)

// WithClock overrides the time source used for elapsed time.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewQueue builds a queue over a copy of urls. The start time is taken here.
func NewQueue(urls []string, opts ...Option) *Queue {
	q := &Queue{
		items: append([]string(nil), urls...),
		total: len(urls),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.started = q.now()
	return q
}

// Next removes and returns the head of the queue.
func (q *Queue) Next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	url := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	q.processed++
	return url, true
}

// Size reports how many URLs are still waiting.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RecordFailure counts one URL that exhausted its retries.
func (q *Queue) RecordFailure() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed++
}

// Stats returns a consistent snapshot.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	rate := 0.0
	if q.processed > 0 {
		rate = float64(q.processed-q.failed) / float64(q.processed)
	}
	return Stats{
		Total:       q.total,
		Processed:   q.processed,
		Remaining:   len(q.items),
		Failed:      q.failed,
		Elapsed:     q.now().Sub(q.started),
		SuccessRate: rate,
	}
}
