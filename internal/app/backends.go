package app

import (
	"fmt"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
	"github.com/JakeFAU/catalog-scraper/internal/config"
	"github.com/JakeFAU/catalog-scraper/internal/discovery"
	collyfetcher "github.com/JakeFAU/catalog-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/catalog-scraper/internal/fetcher/rodsession"
)

// Sitemaps are plain XML, so discovery always goes over HTTP.
func newSitemapFetcher(cfg config.Config) discovery.Fetcher {
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.Discovery.Timeout,
	})
}

func newSessionFactory(cfg config.Config) (catalog.SessionFactory, error) {
	switch cfg.Renderer.Backend {
	case config.BackendChromedp:
		f, err := headless.NewSessionFactory(headless.Config{
			Headless:          cfg.Renderer.Headless,
			ExecPath:          cfg.Renderer.ExecPath,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Crawler.PageTimeout,
			SettleDelay:       cfg.Crawler.SettleDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("chromedp: %w", err)
		}
		return f, nil
	case config.BackendRod:
		return rodsession.NewSessionFactory(rodsession.Config{
			Headless:          cfg.Renderer.Headless,
			Stealth:           cfg.Renderer.Stealth,
			ExecPath:          cfg.Renderer.ExecPath,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Crawler.PageTimeout,
			RemoteURL:         cfg.Renderer.RemoteURL,
		}), nil
	case config.BackendHTTP:
		return collyfetcher.NewSessionFactory(collyfetcher.Config{
			UserAgent:     cfg.Crawler.UserAgent,
			RespectRobots: cfg.Crawler.RespectRobots,
			Timeout:       cfg.Crawler.PageTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown renderer backend %q", cfg.Renderer.Backend)
	}
}
