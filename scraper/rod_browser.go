package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
	"golang.org/x/sync/semaphore"

	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/models"
)

// RodBrowser owns one Chromium process and hands out isolated sessions,
// each an incognito context with a single page. It implements
// SessionFactory and is safe for concurrent use.
type RodBrowser struct {
	browser    *rod.Browser
	sem        *semaphore.Weighted
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	active     atomic.Int32
}

// NewRodBrowser launches Chromium and connects to it.
func NewRodBrowser(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*RodBrowser, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// Stealth flags
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "en-US")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeDriverFailure, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeDriverFailure, "failed to connect to browser", err)
	}

	maxSessions := browserCfg.MaxSessions
	if maxSessions < 1 {
		maxSessions = 1
	}
	slog.Info("browser ready", "maxSessions", maxSessions)

	return &RodBrowser{
		browser:    browser,
		sem:        semaphore.NewWeighted(int64(maxSessions)),
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
	}, nil
}

// NewSession waits for a free slot, then opens an incognito page with
// stealth patches, language headers and resource blocking installed.
func (b *RodBrowser) NewSession(ctx context.Context) (Session, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	incognito, err := b.browser.Incognito()
	if err != nil {
		b.sem.Release(1)
		return nil, fmt.Errorf("%w: incognito context: %w", ErrDriver, err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		b.sem.Release(1)
		return nil, fmt.Errorf("%w: create page: %w", ErrDriver, err)
	}

	if b.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	if lang := b.browserCfg.AcceptLanguage; lang != "" {
		err := proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": lang}),
		}.Call(page)
		if err != nil {
			slog.Debug("extra headers not set", "error", err)
		}
	}

	router := setupHijack(page, b.scraperCfg.BlockedResourceTypes, b.scraperCfg.BlockAds)

	b.active.Add(1)
	s := &rodSession{
		rodPage:   &rodPage{page: page},
		incognito: incognito,
		router:    router,
	}
	s.release = func() {
		b.active.Add(-1)
		b.sem.Release(1)
	}
	return s, nil
}

// Stats returns a snapshot of session usage.
func (b *RodBrowser) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    b.browserCfg.MaxSessions,
		ActiveSessions: int(b.active.Load()),
	}
}

// Close kills the browser process. Call it on graceful shutdown to prevent
// zombie Chrome processes.
func (b *RodBrowser) Close() {
	slog.Info("closing browser")
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
}

// rodSession is one incognito context plus its page.
type rodSession struct {
	*rodPage
	incognito *rod.Browser
	router    *rod.HijackRouter
	release   func()
	once      sync.Once
	closeErr  error
}

func (s *rodSession) Close() error {
	s.once.Do(func() {
		defer s.release()
		if s.router != nil {
			_ = s.router.Stop()
		}
		if err := s.page.Close(); err != nil {
			slog.Debug("page close failed", "error", err)
		}
		s.closeErr = s.incognito.Close()
	})
	return s.closeErr
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
