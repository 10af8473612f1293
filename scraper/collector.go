package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/reviews"
)

// Stop reasons reported in a Collection.
const (
	StopTarget     = "target_reached"
	StopStagnation = "stagnation"
	StopDeadline   = "deadline"
)

// Progress is the collector's per-operation counter set.
type Progress struct {
	UniqueCount          int
	LastGrowthCheckCount int
	StagnationStreak     int
}

// record folds the unique count observed after one iteration into p.
func (p *Progress) record(count int) {
	if count > p.UniqueCount {
		p.UniqueCount = count
		p.StagnationStreak = 0
	} else {
		p.StagnationStreak++
	}
	p.LastGrowthCheckCount = count
}

// Collection is the outcome of one Collect call.
type Collection struct {
	// Texts are unique review texts in first-seen order.
	Texts      []string
	Progress   Progress
	Iterations int
	Pattern    string
	StopReason string
}

// CollectorOptions tunes the scroll-and-extract loop.
type CollectorOptions struct {
	ScrollPause         time.Duration
	StagnationThreshold int
	MinLength           int
	StepTimeout         time.Duration

	// Observe, when set, is called with the progress after every iteration.
	Observe func(Progress)
}

// Collector accumulates review texts from a virtualized, scroll-loaded list.
type Collector struct {
	sel  Selectors
	opts CollectorOptions
}

// NewCollector creates a Collector.
func NewCollector(sel Selectors, opts CollectorOptions) *Collector {
	if opts.StagnationThreshold < 1 {
		opts.StagnationThreshold = 1
	}
	return &Collector{sel: sel, opts: opts}
}

// Collect scrolls and extracts until maxResults unique texts are held, the
// unique count stops growing for StagnationThreshold iterations, or ctx is
// done. Running out of time after the first extraction is a normal stop and
// returns what was gathered; running out before it yields SCRAPE_TIMEOUT.
// A page that shows no review cards on the first pass yields
// REVIEWS_NOT_FOUND.
func (c *Collector) Collect(ctx context.Context, page Page, maxResults int) (*Collection, error) {
	set := reviews.NewUniqueSet()
	out := &Collection{}
	pinned := false

	// Give the list one bounded chance to render before the first read.
	raceProbes(ctx, page, c.sel.cardSelectors(), c.opts.StepTimeout)

	for {
		if err := ctx.Err(); err != nil {
			if out.Iterations == 0 {
				return nil, budgetExhausted(err)
			}
			out.StopReason = StopDeadline
			break
		}

		if err := page.Expand(ctx, c.sel.ReadMore); err != nil {
			if errors.Is(err, ErrDriver) {
				return nil, driverError(err)
			}
			slog.Debug("expand failed", "error", err)
		}

		texts, pattern, err := c.extract(ctx, page)
		if err != nil {
			if errors.Is(err, ErrDriver) {
				return nil, driverError(err)
			}
			slog.Debug("extract failed", "iteration", out.Iterations, "error", err)
		}
		if out.Iterations == 0 && pattern == "" {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, budgetExhausted(ctxErr)
			}
			return nil, models.NewScrapeError(
				models.ErrCodeReviewsNotFound,
				"no review elements matched any known pattern",
				err,
			)
		}
		if out.Pattern == "" {
			out.Pattern = pattern
		}
		out.Iterations++

		for _, t := range texts {
			t = reviews.Clean(t)
			if utf8.RuneCountInString(t) < c.opts.MinLength {
				continue
			}
			set.Add(t)
		}
		out.Progress.record(set.Len())
		if c.opts.Observe != nil {
			c.opts.Observe(out.Progress)
		}

		if maxResults > 0 && set.Len() >= maxResults {
			out.StopReason = StopTarget
			break
		}
		if out.Progress.StagnationStreak >= c.opts.StagnationThreshold {
			out.StopReason = StopStagnation
			break
		}

		if !pinned && pattern != "" {
			ok, err := page.PinScrollContainer(ctx, c.sel.cardFor(pattern))
			if err != nil && errors.Is(err, ErrDriver) {
				return nil, driverError(err)
			}
			pinned = true
			slog.Debug("scroll container pinned", "found", ok)
		}
		if err := page.ScrollReviews(ctx); err != nil {
			if errors.Is(err, ErrDriver) {
				return nil, driverError(err)
			}
			slog.Debug("scroll failed", "error", err)
		}

		select {
		case <-ctx.Done():
		case <-time.After(c.opts.ScrollPause):
		}
	}

	out.Texts = set.Texts()
	slog.Debug("collection finished",
		"unique", out.Progress.UniqueCount,
		"iterations", out.Iterations,
		"pattern", out.Pattern,
		"reason", out.StopReason,
	)
	return out, nil
}

// extract tries each review pattern in order and returns the texts of the
// first one that matches any element, along with that pattern's name.
func (c *Collector) extract(ctx context.Context, page Page) ([]string, string, error) {
	var lastErr error
	for _, p := range c.sel.ReviewPatterns {
		texts, err := page.ReviewTexts(ctx, p)
		if err != nil {
			if errors.Is(err, ErrDriver) {
				return nil, "", err
			}
			lastErr = err
			continue
		}
		if len(texts) > 0 {
			return texts, p.Name, nil
		}
	}
	return nil, "", lastErr
}

func (sel Selectors) cardFor(name string) string {
	for _, p := range sel.ReviewPatterns {
		if p.Name == name {
			return p.Card
		}
	}
	return ""
}

func budgetExhausted(err error) *models.ScrapeError {
	return models.NewScrapeError(models.ErrCodeTimeout, "time budget exhausted before collection began", err)
}

func driverError(err error) *models.ScrapeError {
	return models.NewScrapeError(models.ErrCodeDriverFailure, "browser session failed", err)
}
