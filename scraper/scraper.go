package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/reviews"
)

// Scraper collects reviews for one property per call. Each call owns its
// own browser session, so a Scraper is safe for concurrent use as long as
// its SessionFactory is.
type Scraper struct {
	sessions  SessionFactory
	navigator *Navigator
	collector *Collector
	cfg       config.ScraperConfig
}

// Option customizes a Scraper.
type Option func(*scraperOptions)

type scraperOptions struct {
	selectors Selectors
	observe   func(Progress)
}

// WithSelectors replaces the default selector chains.
func WithSelectors(sel Selectors) Option {
	return func(o *scraperOptions) { o.selectors = sel }
}

// WithProgressObserver registers fn to receive collection progress after
// every iteration.
func WithProgressObserver(fn func(Progress)) Option {
	return func(o *scraperOptions) { o.observe = fn }
}

// New creates a Scraper on top of sessions.
func New(sessions SessionFactory, cfg config.ScraperConfig, opts ...Option) *Scraper {
	o := scraperOptions{selectors: DefaultSelectors()}
	for _, fn := range opts {
		fn(&o)
	}

	return &Scraper{
		sessions:  sessions,
		navigator: NewNavigator(o.selectors, cfg.ProbeTimeout, cfg.StepTimeout),
		collector: NewCollector(o.selectors, CollectorOptions{
			ScrollPause:         cfg.ScrollPause,
			StagnationThreshold: cfg.StagnationThreshold,
			MinLength:           cfg.MinReviewLength,
			StepTimeout:         cfg.StepTimeout,
			Observe:             o.observe,
		}),
		cfg: cfg,
	}
}

// Scrape runs one end-to-end collection for q.
//
// The time budget is a hard ceiling over every step. Running out of time
// before the first review extraction yields SCRAPE_TIMEOUT; running out
// later returns the reviews gathered so far without error.
// The browser session is closed exactly once before Scrape returns.
func (s *Scraper) Scrape(ctx context.Context, q models.ScrapeQuery) ([]models.ReviewRecord, error) {
	budget := s.cfg.ClampBudget(time.Duration(q.TimeBudgetMs) * time.Millisecond)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if q.MaxResults <= 0 {
		q.MaxResults = s.cfg.DefaultMaxResults
	}
	start := time.Now()
	text := q.SearchText()

	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "time budget exhausted before a session was available", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeDriverFailure, "failed to open browser session", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			slog.Warn("session close failed", "search", text, "error", closeErr)
		}
	}()

	nav, err := s.navigator.Navigate(ctx, session, text)
	state := nav.Reached
	if err != nil {
		return nil, categorizeError(ctx, err, "could not reach a place page").WithState(state.String())
	}
	if ctx.Err() != nil {
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "time budget exhausted during navigation", ctx.Err()).
			WithState(state.String())
	}

	shareURL := s.discoverShareURL(ctx, session)

	col, err := s.collector.Collect(ctx, session, q.MaxResults)
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, se.WithState(state.String())
		}
		return nil, categorizeError(ctx, err, "review collection failed")
	}

	records := reviews.Normalize(col.Texts, shareURL, q.MaxResults)
	slog.Info("scrape finished",
		"search", text,
		"state", state.String(),
		"reviews", len(records),
		"iterations", col.Iterations,
		"reason", col.StopReason,
		"elapsed", time.Since(start),
	)
	return records, nil
}

// discoverShareURL asks the page for a canonical place link. Any failure
// yields "".
func (s *Scraper) discoverShareURL(ctx context.Context, page Page) string {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	u, err := page.ShareURL(probeCtx)
	if err != nil {
		slog.Debug("share url not found", "error", err)
		return ""
	}
	return u
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(ctx context.Context, err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return models.NewScrapeError(models.ErrCodeTimeout, "time budget exhausted", err)
	case errors.Is(err, ErrDriver):
		return models.NewScrapeError(models.ErrCodeDriverFailure, "browser session failed", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
