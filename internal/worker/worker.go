// Package worker implements the per-session scrape loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
	"github.com/JakeFAU/catalog-scraper/internal/progress"
	"github.com/JakeFAU/catalog-scraper/internal/retry"
)

// Limiter paces requests before each attempt.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Reporter receives progress events.
type Reporter interface {
	Report(evt progress.Event)
}

// Deps bundles the collaborators a Worker needs. Limiter and Reporter are
// optional.
type Deps struct {
	Queue     catalog.WorkQueue
	Results   catalog.ResultSink
	Sessions  catalog.SessionFactory
	Extractor catalog.Extractor
	Retry     retry.Policy
	Limiter   Limiter
	Reporter  Reporter
}

// Worker owns one session and drains the shared queue through it.
type Worker struct {
	id     int
	deps   Deps
	logger *zap.Logger
}

// New constructs a Worker. id is 1-based and only used for logs and events.
func New(id int, deps Deps, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:     id,
		deps:   deps,
		logger: logger.With(zap.Int("worker", id)),
	}
}

// ID returns the worker id.
func (w *Worker) ID() int {
	return w.id
}

// Run opens the worker's session and processes URLs until the queue is empty
// or ctx is cancelled. It only returns an error when the session cannot be
// opened; page failures are recorded on the queue.
func (w *Worker) Run(ctx context.Context) error {
	session, err := w.deps.Sessions.Open(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	w.report(progress.Event{Stage: progress.StageWorkerStart})
	w.logger.Debug("worker started")

	defer func() {
		if cerr := session.Close(); cerr != nil {
			cleanupErr := &catalog.ResourceCleanupError{Worker: w.id, Err: cerr}
			w.logger.Warn("session close failed", zap.Error(cleanupErr))
		}
		w.report(progress.Event{Stage: progress.StageWorkerStop})
		w.logger.Debug("worker stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		url, ok := w.deps.Queue.Next()
		if !ok {
			return nil
		}
		w.process(ctx, session, url)
	}
}

func (w *Worker) process(ctx context.Context, session catalog.Session, url string) {
	start := time.Now()
	logger := w.logger.With(zap.String("url", url))

	policy := w.deps.Retry
	maxAttempts := policy.Attempts()
	policy.OnFailure = func(attempt int, err error) {
		logger.Warn("extraction attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err),
		)
		if attempt < maxAttempts && ctx.Err() == nil {
			w.report(progress.Event{
				Stage:   progress.StagePageRetry,
				URL:     url,
				Attempt: attempt,
				Note:    err.Error(),
			})
		}
	}

	var product *catalog.ProductRecord
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if w.deps.Limiter != nil {
			if err := w.deps.Limiter.Wait(ctx, url); err != nil {
				return err
			}
		}
		p, err := w.extract(ctx, session, url, attempt)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		w.deps.Queue.RecordFailure()
		logger.Error("product failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		w.report(progress.Event{Stage: progress.StagePageFailed, URL: url, Dur: elapsed, Note: err.Error()})
		return
	}

	w.deps.Results.Append(product)
	for _, warning := range product.Warnings() {
		logger.Warn("product data incomplete", zap.String("warning", warning))
	}
	logger.Info("product extracted",
		zap.String("name", product.Name),
		zap.String("kind", string(product.Kind)),
		zap.Int("variations", len(product.Variations)),
		zap.String("variation_source", string(product.VariationSource)),
		zap.Int("images", len(product.Images)),
		zap.Duration("elapsed", elapsed),
	)
	w.report(progress.Event{
		Stage: progress.StagePageDone,
		URL:   url,
		Dur:   elapsed,
		Count: int64(len(product.Variations)),
		Note:  string(product.VariationSource),
	})
}

// extract runs one attempt. A panicking extractor counts as a failed attempt.
func (w *Worker) extract(
	ctx context.Context,
	session catalog.Session,
	url string,
	attempt int,
) (product *catalog.ProductRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			product = nil
			err = &catalog.ExtractionError{URL: url, Attempt: attempt, Err: fmt.Errorf("extractor panic: %v", r)}
		}
	}()

	product, err = w.deps.Extractor.Extract(ctx, session, url)
	if err != nil {
		var extractErr *catalog.ExtractionError
		if errors.As(err, &extractErr) {
			err = extractErr.Err
		}
		return nil, &catalog.ExtractionError{URL: url, Attempt: attempt, Err: err}
	}
	if product == nil {
		return nil, &catalog.ExtractionError{URL: url, Attempt: attempt, Err: errors.New("extractor returned no product")}
	}
	return product, nil
}

func (w *Worker) report(evt progress.Event) {
	if w.deps.Reporter == nil {
		return
	}
	evt.Worker = w.id
	w.deps.Reporter.Report(evt)
}
