// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/catalog-scraper/internal/app"
	"github.com/JakeFAU/catalog-scraper/internal/catalog"
	"github.com/JakeFAU/catalog-scraper/internal/config"
)

const site = "https://shop.test"

var (
	fixedNow    = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	errNoMarkup = errors.New("no product markup")
)

// MockDiscoverer mocks the catalog.Discoverer interface.
type MockDiscoverer struct {
	mock.Mock
}

// Discover satisfies the catalog.Discoverer interface for the mock.
func (m *MockDiscoverer) Discover(ctx context.Context, siteRoot string) ([]string, error) {
	args := m.Called(ctx, siteRoot)
	urls, _ := args.Get(0).([]string)
	return urls, args.Error(1)
}

type fakeSession struct{}

func (fakeSession) Fetch(_ context.Context, url string) (catalog.Page, error) {
	return catalog.Page{URL: url, StatusCode: 200}, nil
}

func (fakeSession) Close() error { return nil }

type fakeFactory struct {
	err error
}

func (f fakeFactory) Open(context.Context) (catalog.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return fakeSession{}, nil
}

type stubExtractor struct {
	mu     sync.Mutex
	fail   map[string]bool
	calls  []string
	onCall func(url string)
}

func (s *stubExtractor) Extract(_ context.Context, _ catalog.Session, url string) (*catalog.ProductRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, url)
	s.mu.Unlock()
	if s.onCall != nil {
		s.onCall(url)
	}
	if s.fail[url] {
		return nil, errNoMarkup
	}
	name := strings.TrimPrefix(url, site+"/product/")
	return &catalog.ProductRecord{
		Kind:         catalog.KindSimple,
		URL:          url,
		Name:         name,
		RegularPrice: "10.00",
		Images:       []string{url + ".jpg"},
	}, nil
}

func productURLs(names ...string) []string {
	urls := make([]string, 0, len(names))
	for _, name := range names {
		urls = append(urls, site+"/product/"+name)
	}
	return urls
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Read(config.NewViper(), "")
	require.NoError(t, err)
	cfg.Site = site + "/"
	cfg.Output.Dir = t.TempDir()
	cfg.Crawler.Concurrency = 2
	cfg.Crawler.RetryAttempts = 2
	cfg.Crawler.RetryDelay = 0
	return cfg
}

func noPause(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newApp(
	t *testing.T,
	cfg config.Config,
	disc catalog.Discoverer,
	factory catalog.SessionFactory,
	ext catalog.Extractor,
	logger *zap.Logger,
	reg *prometheus.Registry,
) *app.App {
	t.Helper()
	a, err := app.New(cfg, logger,
		app.WithDiscoverer(disc),
		app.WithSessionFactory(factory),
		app.WithExtractor(ext),
		app.WithRegistry(reg),
		app.WithClock(func() time.Time { return fixedNow }),
		app.WithRetrySleep(noPause),
	)
	require.NoError(t, err)
	return a
}

func TestRunExportsLimitedProducts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Crawler.Limit = 2
	disc := &MockDiscoverer{}
	disc.On("Discover", mock.Anything, site).Return(productURLs("mug", "cup", "jar"), nil).Once()
	ext := &stubExtractor{}
	reg := prometheus.NewRegistry()

	res, err := newApp(t, cfg, disc, fakeFactory{}, ext, zap.NewNop(), reg).Run(context.Background())
	require.NoError(t, err)
	disc.AssertExpectations(t)

	assert.Equal(t, 3, res.Discovered)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Processed)
	assert.Zero(t, res.Stats.Failed)
	assert.Equal(t, 2, res.Succeeded)
	assert.ElementsMatch(t, productURLs("mug", "cup"), ext.calls)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "woocommerce-shop-2026-01-02T03-04-05-000Z.csv"), res.OutputPath)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Type"))

	count, err := testutil.GatherAndCount(reg, "scraper_rows_exported_total", "scraper_runs_completed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunWritesEmptyExportWhenEveryPageFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	urls := productURLs("mug", "cup")
	disc := &MockDiscoverer{}
	disc.On("Discover", mock.Anything, site).Return(urls, nil).Once()
	ext := &stubExtractor{fail: map[string]bool{urls[0]: true, urls[1]: true}}

	res, err := newApp(t, cfg, disc, fakeFactory{}, ext, zap.NewNop(), prometheus.NewRegistry()).
		Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Rows)
	assert.Equal(t, 2, res.Stats.Failed)
	assert.Len(t, ext.calls, 4, "each URL is attempted twice")

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"), "header only")
}

func TestRunGivesDiscoveryNoOverallDeadline(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	noDeadline := mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return !ok
	})
	disc := &MockDiscoverer{}
	disc.On("Discover", noDeadline, site).Return(productURLs("mug"), nil).Once()

	res, err := newApp(t, cfg, disc, fakeFactory{}, &stubExtractor{}, zap.NewNop(), prometheus.NewRegistry()).
		Run(context.Background())
	require.NoError(t, err)
	disc.AssertExpectations(t)
	assert.Equal(t, 1, res.Rows)
}

func TestRunStopsOnDiscoveryError(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	disc := &MockDiscoverer{}
	disc.On("Discover", mock.Anything, site).Return(nil, catalog.ErrNoSitemapFound).Once()
	ext := &stubExtractor{}

	_, err := newApp(t, cfg, disc, fakeFactory{}, ext, zap.NewNop(), prometheus.NewRegistry()).
		Run(context.Background())
	require.Error(t, err)

	var discoveryErr *catalog.DiscoveryError
	require.ErrorAs(t, err, &discoveryErr)
	assert.Equal(t, site, discoveryErr.Site)
	assert.ErrorIs(t, err, catalog.ErrNoSitemapFound)
	assert.Empty(t, ext.calls)

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunFailsWhenNoSessionOpens(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	disc := &MockDiscoverer{}
	disc.On("Discover", mock.Anything, site).Return(productURLs("mug"), nil).Once()
	core, logs := observer.New(zapcore.InfoLevel)

	res, err := newApp(t, cfg, disc, fakeFactory{err: errors.New("chrome missing")}, &stubExtractor{},
		zap.New(core), prometheus.NewRegistry()).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "chrome missing")
	assert.Empty(t, res.OutputPath)
	assert.Equal(t, 1, logs.FilterMessage("scrape summary").Len())
}

func TestRunExportsPartialResultsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Crawler.Concurrency = 1
	cfg.Crawler.ShutdownGrace = time.Second
	disc := &MockDiscoverer{}
	disc.On("Discover", mock.Anything, site).Return(productURLs("mug", "cup", "jar"), nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ext := &stubExtractor{onCall: func(string) { cancel() }}

	res, err := newApp(t, cfg, disc, fakeFactory{}, ext, zap.NewNop(), prometheus.NewRegistry()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 2, res.Stats.Remaining)
	assert.FileExists(t, res.OutputPath)
}

func TestRunSummaryCountsPagesStillInFlight(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Crawler.Concurrency = 1
	cfg.Crawler.ShutdownGrace = 50 * time.Millisecond
	disc := &MockDiscoverer{}
	disc.On("Discover", mock.Anything, site).Return(productURLs("mug", "cup"), nil).Once()
	core, logs := observer.New(zapcore.InfoLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	ext := &stubExtractor{onCall: func(string) {
		cancel()
		<-release
	}}

	res, err := newApp(t, cfg, disc, fakeFactory{}, ext, zap.New(core), prometheus.NewRegistry()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.Processed)
	assert.Zero(t, res.Stats.Failed)
	assert.Zero(t, res.Succeeded)
	assert.Zero(t, res.Rows)

	summaries := logs.FilterMessage("scrape summary").All()
	require.Len(t, summaries, 1)
	fields := summaries[0].ContextMap()
	assert.EqualValues(t, 0, fields["succeeded"])
	assert.EqualValues(t, 1, fields["in_flight"])
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Site = "shop.test"
	_, err := app.New(cfg, nil)
	assert.ErrorContains(t, err, "validate site")

	cfg = testConfig(t)
	cfg.Crawler.Concurrency = 50
	_, err = app.New(cfg, nil)
	assert.ErrorContains(t, err, "crawler.concurrency")

	cfg = testConfig(t)
	cfg.Renderer.Backend = "http"
	a, err := app.New(cfg, nil, app.WithDiscoverer(&MockDiscoverer{}))
	require.NoError(t, err)
	assert.NotNil(t, a)
}
