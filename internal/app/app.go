// Package app wires one scrape run: discovery, the worker pool, export and the
// progress plumbing around them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-scraper/internal/api"
	"github.com/JakeFAU/catalog-scraper/internal/catalog"
	"github.com/JakeFAU/catalog-scraper/internal/config"
	"github.com/JakeFAU/catalog-scraper/internal/discovery"
	"github.com/JakeFAU/catalog-scraper/internal/dispatcher"
	"github.com/JakeFAU/catalog-scraper/internal/export"
	"github.com/JakeFAU/catalog-scraper/internal/extract"
	"github.com/JakeFAU/catalog-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-scraper/internal/progress"
	"github.com/JakeFAU/catalog-scraper/internal/progress/sinks"
	memqueue "github.com/JakeFAU/catalog-scraper/internal/queue/memory"
	"github.com/JakeFAU/catalog-scraper/internal/retry"
	memstore "github.com/JakeFAU/catalog-scraper/internal/storage/memory"
	"github.com/JakeFAU/catalog-scraper/internal/worker"
)

const hubCloseTimeout = 5 * time.Second

// Result summarizes a finished run.
type Result struct {
	RunID      uuid.UUID
	Site       string
	OutputPath string
	Discovered int
	// Succeeded counts extracted products. After the grace period elapses it
	// can trail Stats.Processed - Stats.Failed by the pages still in flight.
	Succeeded  int
	Rows       int
	Stats      memqueue.Stats
	Warnings   []string
}

// App runs scrapes with a fixed configuration.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	discoverer catalog.Discoverer
	sessions   catalog.SessionFactory
	extractor  catalog.Extractor
	registry   *prometheus.Registry
	now        func() time.Time
	pause      retry.SleepFunc
}

// Option customizes an App.
type Option func(*App)

// WithDiscoverer replaces the sitemap discoverer built from config.
func WithDiscoverer(d catalog.Discoverer) Option {
	return func(a *App) { a.discoverer = d }
}

// WithSessionFactory replaces the renderer backend built from config.
func WithSessionFactory(f catalog.SessionFactory) Option {
	return func(a *App) { a.sessions = f }
}

// WithExtractor replaces the WooCommerce extractor.
func WithExtractor(e catalog.Extractor) Option {
	return func(a *App) { a.extractor = e }
}

// WithRegistry sets the Prometheus registry the run reports into.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithClock overrides the time source used for file names and queue stats.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithRetrySleep overrides the pause between attempts.
func WithRetrySleep(sleep retry.SleepFunc) Option {
	return func(a *App) { a.pause = sleep }
}

// New validates cfg and builds the collaborators not supplied via options.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := discovery.ValidateSiteURL(cfg.Site); err != nil {
		return nil, fmt.Errorf("validate site: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if a.discoverer == nil {
		d, err := discovery.New(newSitemapFetcher(cfg), discovery.Config{
			Paths:     cfg.Discovery.SitemapPaths,
			CacheSize: cfg.Discovery.CacheSize,
		}, logger.Named("discovery"))
		if err != nil {
			return nil, fmt.Errorf("init discovery: %w", err)
		}
		a.discoverer = d
	}
	if a.sessions == nil {
		f, err := newSessionFactory(cfg)
		if err != nil {
			return nil, fmt.Errorf("init renderer: %w", err)
		}
		a.sessions = f
	}
	if a.extractor == nil {
		a.extractor = extract.New(logger.Named("extract"))
	}
	return a, nil
}

// Run scrapes the configured site and writes the CSV. The queue summary is
// logged once the pool stops, whether or not it failed. Cancelling ctx stops
// workers from claiming new pages; whatever was extracted is still exported.
// Each App runs once: its registry holds the collectors of that run.
func (a *App) Run(ctx context.Context) (Result, error) {
	runID := uuid.New()
	siteRoot, err := discovery.NormalizeSiteRoot(a.cfg.Site)
	if err != nil {
		return Result{}, fmt.Errorf("normalize site: %w", err)
	}
	site := hostLabel(siteRoot)
	result := Result{RunID: runID, Site: siteRoot}
	logger := a.logger.With(zap.String("run_id", runID.String()), zap.String("site", siteRoot))
	started := a.now()

	hub, err := a.startHub(logger)
	if err != nil {
		return result, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hubCloseTimeout)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
	}()
	reporter := progress.NewReporter(hub, runID, site)
	reporter.Report(progress.Event{Stage: progress.StageRunStart})

	status, stopStatus := a.startStatusServer(ctx, runID, siteRoot, logger)
	defer stopStatus()

	fail := func(err error) (Result, error) {
		reporter.Report(progress.Event{Stage: progress.StageRunError, Dur: a.now().Sub(started), Note: err.Error()})
		return result, err
	}

	logger.Info("starting scrape",
		zap.Int("concurrency", a.cfg.Crawler.Concurrency),
		zap.Int("limit", a.cfg.Crawler.Limit),
		zap.String("renderer", a.cfg.Renderer.Backend),
	)

	urls, err := a.discover(ctx, siteRoot)
	if err != nil {
		return fail(err)
	}
	result.Discovered = len(urls)
	reporter.Report(progress.Event{Stage: progress.StageDiscovered, Count: int64(len(urls))})
	urls = applyLimit(urls, a.cfg.Crawler.Limit)
	logger.Info("product urls discovered", zap.Int("available", result.Discovered), zap.Int("scheduled", len(urls)))

	queue := memqueue.NewQueue(urls, memqueue.WithClock(a.now))
	if status != nil {
		status.SetStats(queue)
	}
	results := memstore.NewResultStore()
	pool := a.buildPool(queue, results, reporter, logger)
	poolErr := a.runPool(ctx, pool, logger)
	result.Stats = queue.Stats()
	result.Succeeded = results.Len()
	logSummary(logger, result.Stats, result.Succeeded)
	if poolErr != nil {
		return fail(poolErr)
	}

	table := export.Expand(results.Products())
	result.Warnings = table.Warnings
	for _, warning := range table.Warnings {
		logger.Warn("export warning", zap.String("warning", warning))
	}
	path := export.OutputPath(a.cfg.Output.Dir, siteRoot, a.now())
	if err := export.NewCSVWriter().WriteFile(path, table); err != nil {
		return fail(err)
	}
	result.OutputPath = path
	result.Rows = len(table.Rows)
	reporter.Report(progress.Event{Stage: progress.StageExportDone, Count: int64(len(table.Rows)), Note: path})

	logger.Info("export written",
		zap.String("path", path),
		zap.Int("products", results.Len()),
		zap.Int("rows", len(table.Rows)),
		zap.Int("attribute_columns", table.MaxAttributes),
	)
	reporter.Report(progress.Event{Stage: progress.StageRunDone, Dur: a.now().Sub(started)})
	return result, nil
}

func (a *App) startHub(logger *zap.Logger) (*progress.Hub, error) {
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	return progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
	), nil
}

// startStatusServer serves /metrics and /stats when server.metrics_addr is set.
// The returned stop function shuts it down.
func (a *App) startStatusServer(
	ctx context.Context,
	runID uuid.UUID,
	site string,
	logger *zap.Logger,
) (*api.Server, func()) {
	if a.cfg.Server.MetricsAddr == "" {
		return nil, func() {}
	}
	srv, err := api.NewServer(runID, site, a.registry, logger)
	if err != nil {
		logger.Warn("status server disabled", zap.Error(err))
		return nil, func() {}
	}
	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(serveCtx, a.cfg.Server.MetricsAddr, time.Second); err != nil {
			logger.Warn("status server stopped", zap.Error(err))
		}
	}()
	return srv, func() {
		cancel()
		<-done
	}
}

// discover has no overall deadline: discovery.timeout bounds each sitemap
// request inside the fetcher, so a large index is never cut short.
func (a *App) discover(ctx context.Context, siteRoot string) ([]string, error) {
	urls, err := a.discoverer.Discover(ctx, siteRoot)
	if err != nil {
		var discoveryErr *catalog.DiscoveryError
		if errors.As(err, &discoveryErr) {
			return nil, err
		}
		return nil, &catalog.DiscoveryError{Site: siteRoot, Err: err}
	}
	return urls, nil
}

func (a *App) buildPool(
	queue *memqueue.Queue,
	results *memstore.ResultStore,
	reporter *progress.Reporter,
	logger *zap.Logger,
) *dispatcher.Dispatcher {
	policy := retry.New(a.cfg.Crawler.RetryAttempts, a.cfg.Crawler.RetryDelay)
	policy.Sleep = a.pause

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: a.cfg.Crawler.RequestsPerSecond,
		Burst:             a.cfg.Crawler.RateBurst,
		OnDelay: func(host string, waited time.Duration) {
			reporter.Report(progress.Event{Stage: progress.StageRateDelay, Site: host, Dur: waited})
		},
	})

	return dispatcher.NewPool(a.cfg.Crawler.Concurrency, worker.Deps{
		Queue:     queue,
		Results:   results,
		Sessions:  a.sessions,
		Extractor: a.extractor,
		Retry:     policy,
		Limiter:   limiter,
		Reporter:  reporter,
	}, logger.Named("worker"))
}

// runPool waits for the pool. After cancellation it waits at most the
// shutdown grace period before giving up on in-flight pages.
func (a *App) runPool(ctx context.Context, pool *dispatcher.Dispatcher, logger *zap.Logger) error {
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	grace := a.cfg.Crawler.ShutdownGrace
	logger.Warn("shutdown requested, waiting for in-flight pages", zap.Duration("grace", grace))
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		logger.Warn("grace period elapsed, exporting partial results")
		return nil
	}
}

func applyLimit(urls []string, limit int) []string {
	if limit > 0 && limit < len(urls) {
		return urls[:limit]
	}
	return urls
}

func hostLabel(siteRoot string) string {
	u, err := url.Parse(siteRoot)
	if err != nil || u.Hostname() == "" {
		return siteRoot
	}
	return u.Hostname()
}

// logSummary takes succeeded from the result store: pages abandoned after the
// grace period are processed but have neither succeeded nor failed.
func logSummary(logger *zap.Logger, stats memqueue.Stats, succeeded int) {
	inFlight := max(stats.Processed-stats.Failed-succeeded, 0)
	logger.Info("scrape summary",
		zap.Int("total", stats.Total),
		zap.Int("processed", stats.Processed),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("in_flight", inFlight),
		zap.Int("remaining", stats.Remaining),
		zap.String("success_rate", fmt.Sprintf("%.1f%%", stats.SuccessRate*100)),
		zap.Duration("elapsed", stats.Elapsed),
	)
}
