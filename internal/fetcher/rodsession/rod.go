// Package rodsession is a go-rod browser backend with optional stealth pages.
package rodsession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	// statusWait bounds how long Fetch waits for the document response event
	// after the load event already fired.
	statusWait = time.Second
)

// Config controls launch flags and page behavior.
type Config struct {
	Headless          bool
	Stealth           bool
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	// RemoteURL connects to an existing DevTools endpoint instead of launching Chrome.
	RemoteURL string
}

// SessionFactory launches one Chrome per worker.
type SessionFactory struct {
	cfg Config
}

// NewSessionFactory returns a factory with defaults applied.
func NewSessionFactory(cfg Config) *SessionFactory {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	return &SessionFactory{cfg: cfg}
}

// Open launches (or connects to) a browser.
func (f *SessionFactory) Open(ctx context.Context) (catalog.Session, error) {
	wsURL := f.cfg.RemoteURL
	var lnch *launcher.Launcher
	if wsURL == "" {
		lnch = f.launcher()
		u, err := lnch.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		wsURL = u
	}
	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	return &Session{cfg: f.cfg, browser: browser, launcher: lnch}, nil
}

func (f *SessionFactory) launcher() *launcher.Launcher {
	l := launcher.New().
		Headless(f.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled")
	if f.cfg.ExecPath != "" {
		l = l.Bin(f.cfg.ExecPath)
	}
	return l
}

// Session renders pages in fresh tabs of one browser.
type Session struct {
	cfg       Config
	browser   *rod.Browser
	launcher  *launcher.Launcher
	closeOnce sync.Once
}

// Fetch navigates a new tab to url and returns its HTML.
func (s *Session) Fetch(ctx context.Context, url string) (catalog.Page, error) {
	page, err := s.newPage()
	if err != nil {
		return catalog.Page{}, err
	}
	defer func() { _ = page.Close() }()

	if s.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}); err != nil {
			return catalog.Page{}, fmt.Errorf("set user-agent: %w", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	start := time.Now()
	p := page.Context(navCtx)
	doc := &documentResponse{frame: page.FrameID}
	wait := p.EachEvent(doc.observe)
	seen := make(chan struct{})
	go func() {
		defer close(seen)
		wait()
	}()

	if err := p.Navigate(url); err != nil {
		return catalog.Page{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return catalog.Page{}, fmt.Errorf("wait load %s: %w", url, err)
	}
	select {
	case <-seen:
	case <-time.After(statusWait):
	}

	status, responseURL := doc.result(url)
	if status >= http.StatusBadRequest {
		return catalog.Page{}, fmt.Errorf("render %s: status %d", url, status)
	}
	html, err := p.HTML()
	if err != nil {
		return catalog.Page{}, fmt.Errorf("read html %s: %w", url, err)
	}
	finalURL := responseURL
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return catalog.Page{
		URL:        finalURL,
		StatusCode: status,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

// documentResponse records the status of the main frame's document.
type documentResponse struct {
	frame  proto.PageFrameID
	mu     sync.Mutex
	status int
	url    string
}

// observe stops the event loop once the main document response arrived.
func (d *documentResponse) observe(e *proto.NetworkResponseReceived) bool {
	if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
		return false
	}
	if d.frame != "" && e.FrameID != "" && e.FrameID != d.frame {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = e.Response.Status
	d.url = e.Response.URL
	return true
}

// result falls back to 200 and the requested URL when no document response
// was seen, as for pages served from cache.
func (d *documentResponse) result(requestURL string) (int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, url := d.status, d.url
	if status == 0 {
		status = http.StatusOK
	}
	if url == "" {
		url = requestURL
	}
	return status, url
}

func (s *Session) newPage() (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if s.cfg.Stealth {
		page, err = stealth.Page(s.browser)
	} else {
		page, err = s.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}
	return page, nil
}

// Close shuts the browser down and removes the launcher's profile directory.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := s.browser.Close(); cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = fmt.Errorf("close chrome: %w", cerr)
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
	})
	return err
}
