// Package dispatcher runs a fixed pool of workers over the shared queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-scraper/internal/worker"
)

// ErrNoWorkers is returned by Run when the pool is empty.
var ErrNoWorkers = errors.New("dispatcher has no workers")

// Runner is the part of a worker the dispatcher drives.
type Runner interface {
	ID() int
	Run(ctx context.Context) error
}

// Dispatcher fans queue work out to a pool of workers.
type Dispatcher struct {
	workers []Runner
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(workers []Runner, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		workers: workers,
		logger:  logger,
	}
}

// NewPool builds n workers sharing deps.
func NewPool(n int, deps worker.Deps, logger *zap.Logger) *Dispatcher {
	workers := make([]Runner, 0, n)
	for i := 1; i <= n; i++ {
		workers = append(workers, worker.New(i, deps, logger))
	}
	return New(workers, logger)
}

// Size reports the number of workers.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}

// Run starts all workers and blocks until each has drained the queue or
// observed cancellation. A worker that cannot open its session is logged and
// skipped; Run fails only when none of them could.
func (d *Dispatcher) Run(ctx context.Context) error {
	if len(d.workers) == 0 {
		return ErrNoWorkers
	}
	errs := make([]error, len(d.workers))
	var wg sync.WaitGroup
	for i, w := range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				errs[i] = err
				d.logger.Error("worker exited", zap.Int("worker", w.ID()), zap.Error(err))
			}
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(d.workers) {
		return fmt.Errorf("start workers: %w", errors.Join(errs...))
	}
	return nil
}
