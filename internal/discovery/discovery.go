// Package discovery reads a site's XML sitemaps and returns its product page URLs.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

// DefaultPaths are the sitemap locations probed, in priority order.
var DefaultPaths = []string{"/sitemap.xml", "/product-sitemap.xml"}

const defaultCacheSize = 64

// Fetcher loads a single document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (catalog.Page, error)
}

// Config controls candidate locations and the document cache.
type Config struct {
	Paths     []string
	CacheSize int
}

// Discoverer walks candidate sitemaps until one yields product URLs.
type Discoverer struct {
	fetcher Fetcher
	paths   []string
	cache   *lru.Cache[string, []byte]
	logger  *zap.Logger
}

// New builds a Discoverer.
func New(fetcher Fetcher, cfg Config, logger *zap.Logger) (*Discoverer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("discovery fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := cfg.Paths
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create sitemap cache: %w", err)
	}
	return &Discoverer{
		fetcher: fetcher,
		paths:   append([]string(nil), paths...),
		cache:   cache,
		logger:  logger,
	}, nil
}

// Discover returns the sorted, de-duplicated product URLs of siteRoot. It fails
// with a *catalog.DiscoveryError wrapping catalog.ErrNoSitemapFound when no
// candidate location produced any, and with one wrapping ctx's error when ctx
// ends before every sub-sitemap was read.
func (d *Discoverer) Discover(ctx context.Context, siteRoot string) ([]string, error) {
	root, err := NormalizeSiteRoot(siteRoot)
	if err != nil {
		return nil, &catalog.DiscoveryError{Site: siteRoot, Err: err}
	}

	var found []string
	for _, path := range d.paths {
		if err := ctx.Err(); err != nil {
			return nil, &catalog.DiscoveryError{Site: root, Err: fmt.Errorf("discovery canceled: %w", err)}
		}
		location := root + "/" + strings.TrimLeft(path, "/")
		d.logger.Info("checking sitemap", zap.String("url", location))
		found = d.processLocation(ctx, location)
		if err := ctx.Err(); err != nil {
			return nil, &catalog.DiscoveryError{Site: root, Err: fmt.Errorf("discovery canceled: %w", err)}
		}
		if len(found) > 0 {
			d.logger.Info("product urls found",
				zap.String("url", location),
				zap.Int("count", len(found)),
			)
			break
		}
	}

	if len(found) == 0 {
		return nil, &catalog.DiscoveryError{Site: root, Err: catalog.ErrNoSitemapFound}
	}
	slices.Sort(found)
	found = slices.Compact(found)
	d.logger.Info("total unique product urls", zap.Int("count", len(found)))
	return found, nil
}

func (d *Discoverer) processLocation(ctx context.Context, location string) []string {
	doc, err := d.load(ctx, location)
	if err != nil {
		d.logger.Warn("sitemap unavailable", zap.String("url", location), zap.Error(err))
		return nil
	}
	if sitemaps := childSitemaps(doc); len(sitemaps) > 0 {
		d.logger.Info("found sitemap index", zap.String("url", location), zap.Int("sitemaps", len(sitemaps)))
		var all []string
		for _, sub := range sitemaps {
			subDoc, err := d.load(ctx, sub)
			if err != nil {
				d.logger.Warn("sub-sitemap unavailable", zap.String("url", sub), zap.Error(err))
				continue
			}
			urls := productURLs(subDoc)
			d.logger.Debug("checked sub-sitemap", zap.String("url", sub), zap.Int("count", len(urls)))
			all = append(all, urls...)
		}
		return all
	}
	return productURLs(doc)
}

func (d *Discoverer) load(ctx context.Context, location string) (*xmlquery.Node, error) {
	body, ok := d.cache.Get(location)
	if !ok {
		page, err := d.fetcher.Fetch(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("fetch sitemap: %w", err)
		}
		if page.StatusCode != 0 && (page.StatusCode < 200 || page.StatusCode >= 300) {
			return nil, fmt.Errorf("fetch sitemap: unexpected status %d", page.StatusCode)
		}
		body = page.Body
		d.cache.Add(location, body)
	}
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	return doc, nil
}

func childSitemaps(doc *xmlquery.Node) []string {
	return locs(doc, "//sitemapindex/sitemap/loc")
}

func productURLs(doc *xmlquery.Node) []string {
	var out []string
	for _, loc := range locs(doc, "//urlset/url/loc") {
		if IsProductURL(loc) {
			out = append(out, loc)
		}
	}
	return out
}

func locs(doc *xmlquery.Node, expr string) []string {
	var out []string
	for _, node := range xmlquery.Find(doc, expr) {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
