package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]string
	codes map[string]int
	calls map[string]int
}

func newFakeFetcher(docs map[string]string) *fakeFetcher {
	return &fakeFetcher{docs: docs, codes: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (catalog.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if code, ok := f.codes[url]; ok {
		return catalog.Page{URL: url, StatusCode: code}, nil
	}
	body, ok := f.docs[url]
	if !ok {
		return catalog.Page{}, fmt.Errorf("GET %s: 404 Not Found", url)
	}
	return catalog.Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

// slowFetcher delays every request and honors cancellation like a real client.
type slowFetcher struct {
	*fakeFetcher
	delay time.Duration
}

func (f slowFetcher) Fetch(ctx context.Context, url string) (catalog.Page, error) {
	select {
	case <-ctx.Done():
		return catalog.Page{}, fmt.Errorf("GET %s: %w", url, ctx.Err())
	case <-time.After(f.delay):
	}
	return f.fakeFetcher.Fetch(ctx, url)
}

func urlset(locs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		out += "<url><loc>" + loc + "</loc></url>"
	}
	return out + "</urlset>"
}

func sitemapIndex(locs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		out += "<sitemap><loc>" + loc + "</loc></sitemap>"
	}
	return out + "</sitemapindex>"
}

func newDiscoverer(t *testing.T, f Fetcher) *Discoverer {
	t.Helper()
	d, err := New(f, Config{}, zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestDiscoverFollowsSitemapIndex(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		"https://shop.test/sitemap.xml": sitemapIndex("https://shop.test/sub1.xml", "https://shop.test/sub2.xml"),
		"https://shop.test/sub1.xml":    urlset("https://shop.test/product/b", "https://shop.test/product/a"),
		"https://shop.test/sub2.xml":    urlset("https://shop.test/en/product/c", "https://shop.test/about"),
	})

	urls, err := newDiscoverer(t, f).Discover(context.Background(), "https://shop.test/")

	require.NoError(t, err)
	require.Equal(t, []string{"https://shop.test/product/a", "https://shop.test/product/b"}, urls)
	require.Zero(t, f.calls["https://shop.test/product-sitemap.xml"], "discovery stops at the first productive location")
}

func TestDiscoverFallsBackToProductSitemap(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		"https://shop.test/sitemap.xml":         urlset("https://shop.test/blog/hello"),
		"https://shop.test/product-sitemap.xml": urlset("https://shop.test/products/z", "https://shop.test/products/z"),
	})

	urls, err := newDiscoverer(t, f).Discover(context.Background(), "https://shop.test")

	require.NoError(t, err)
	require.Equal(t, []string{"https://shop.test/products/z"}, urls)
}

func TestDiscoverSkipsFailingSubSitemap(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		"https://shop.test/sitemap.xml": sitemapIndex("https://shop.test/broken.xml", "https://shop.test/ok.xml"),
		"https://shop.test/ok.xml":      urlset("https://shop.test/product/ok"),
	})
	f.codes["https://shop.test/broken.xml"] = 500

	urls, err := newDiscoverer(t, f).Discover(context.Background(), "https://shop.test")

	require.NoError(t, err)
	require.Equal(t, []string{"https://shop.test/product/ok"}, urls)
}

func TestDiscoverFailsWhenCanceledInsideIndex(t *testing.T) {
	t.Parallel()

	docs := map[string]string{}
	var subs []string
	for i := range 6 {
		sub := fmt.Sprintf("https://shop.test/product-sitemap%d.xml", i)
		subs = append(subs, sub)
		docs[sub] = urlset(fmt.Sprintf("https://shop.test/product/p%d", i))
	}
	docs["https://shop.test/sitemap.xml"] = sitemapIndex(subs...)
	f := slowFetcher{fakeFetcher: newFakeFetcher(docs), delay: 40 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	urls, err := newDiscoverer(t, f).Discover(ctx, "https://shop.test")

	require.Nil(t, urls, "a truncated index must not be reported as a result")
	var discoveryErr *catalog.DiscoveryError
	require.ErrorAs(t, err, &discoveryErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, catalog.ErrNoSitemapFound)
}

func TestDiscoverReadsEverySubSitemapOfSlowIndex(t *testing.T) {
	t.Parallel()

	docs := map[string]string{}
	var subs, want []string
	for i := range 6 {
		sub := fmt.Sprintf("https://shop.test/product-sitemap%d.xml", i)
		subs = append(subs, sub)
		want = append(want, fmt.Sprintf("https://shop.test/product/p%d", i))
		docs[sub] = urlset(want[i])
	}
	docs["https://shop.test/sitemap.xml"] = sitemapIndex(subs...)
	f := slowFetcher{fakeFetcher: newFakeFetcher(docs), delay: 5 * time.Millisecond}

	urls, err := newDiscoverer(t, f).Discover(context.Background(), "https://shop.test")

	require.NoError(t, err)
	require.Equal(t, want, urls)
}

func TestDiscoverCachesRepeatedSitemaps(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		"https://shop.test/sitemap.xml": sitemapIndex("https://shop.test/p.xml", "https://shop.test/p.xml"),
		"https://shop.test/p.xml":       urlset("https://shop.test/product/one"),
	})

	urls, err := newDiscoverer(t, f).Discover(context.Background(), "https://shop.test")

	require.NoError(t, err)
	require.Equal(t, []string{"https://shop.test/product/one"}, urls)
	require.Equal(t, 1, f.calls["https://shop.test/p.xml"])
}

func TestDiscoverNoProductURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		docs map[string]string
	}{
		{name: "no sitemaps", docs: map[string]string{}},
		{name: "only non product urls", docs: map[string]string{
			"https://shop.test/sitemap.xml": urlset("https://shop.test/cart"),
		}},
		{name: "malformed xml", docs: map[string]string{
			"https://shop.test/sitemap.xml": "<urlset><url><loc>",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := newDiscoverer(t, newFakeFetcher(tt.docs)).Discover(context.Background(), "https://shop.test")
			require.ErrorIs(t, err, catalog.ErrNoSitemapFound)
			var de *catalog.DiscoveryError
			require.True(t, errors.As(err, &de))
			require.Equal(t, "https://shop.test", de.Site)
		})
	}
}

func TestDiscoverRejectsInvalidSite(t *testing.T) {
	t.Parallel()

	_, err := newDiscoverer(t, newFakeFetcher(nil)).Discover(context.Background(), "ftp://shop.test")
	require.ErrorIs(t, err, ErrInvalidSiteURL)
}

func TestNewRequiresFetcher(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{}, nil)
	require.Error(t, err)
}
