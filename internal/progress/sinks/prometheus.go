package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/catalog-scraper/internal/progress"
)

// PrometheusSink turns progress events into scrape metrics.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	discovered     prometheus.Counter
	workersActive  prometheus.Gauge
	pages          *prometheus.CounterVec
	retries        prometheus.Counter
	pageDuration   *prometheus.HistogramVec
	variations     prometheus.Counter
	rateLimitDelay prometheus.Histogram
	rowsExported   prometheus.Counter
}

// NewPrometheusSink registers the collectors against reg, falling back to the
// default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_runs_started_total",
			Help: "Scrape runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_runs_completed_total",
			Help: "Scrape runs finished, partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Wall time per scrape run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_urls_discovered_total",
			Help: "Product URLs found in sitemaps.",
		}),
		workersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_workers_active",
			Help: "Workers currently holding a browser session.",
		}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Product pages processed, partitioned by result.",
		}, []string{"result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_page_retries_total",
			Help: "Failed extraction attempts that were retried.",
		}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_page_duration_seconds",
			Help:    "Time spent on a page including retries.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"result"}),
		variations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_variations_total",
			Help: "Variations extracted from variable products.",
		}),
		rateLimitDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_rate_limit_delay_seconds",
			Help:    "Time workers spent waiting on the per-host rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		rowsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_rows_exported_total",
			Help: "CSV rows written.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.discovered,
		s.workersActive,
		s.pages,
		s.retries,
		s.pageDuration,
		s.variations,
		s.rateLimitDelay,
		s.rowsExported,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.finishRun(evt, "success")
	case progress.StageRunError:
		s.finishRun(evt, "error")
	case progress.StageDiscovered:
		s.discovered.Add(float64(evt.Count))
	case progress.StageWorkerStart:
		s.workersActive.Inc()
	case progress.StageWorkerStop:
		s.workersActive.Dec()
	case progress.StagePageDone:
		s.finishPage(evt, "success")
		if evt.Count > 0 {
			s.variations.Add(float64(evt.Count))
		}
	case progress.StagePageFailed:
		s.finishPage(evt, "failed")
	case progress.StagePageRetry:
		s.retries.Inc()
	case progress.StageRateDelay:
		s.rateLimitDelay.Observe(evt.Dur.Seconds())
	case progress.StageExportDone:
		s.rowsExported.Add(float64(evt.Count))
	}
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) finishPage(evt progress.Event, result string) {
	s.pages.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.pageDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
