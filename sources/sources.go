// Package sources fans a review query out to every enabled review source
// and merges the results.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/reviews"
)

// Source is anything that can produce reviews for a query.
type Source interface {
	// Name returns the source identifier (e.g. "maps", "yelp").
	Name() string

	// Reviews collects reviews for q. It must return by the time ctx is done.
	Reviews(ctx context.Context, q models.ScrapeQuery) ([]models.ReviewRecord, error)
}

// FuncSource adapts a function to the Source interface.
type FuncSource struct {
	SourceName string
	Fn         func(ctx context.Context, q models.ScrapeQuery) ([]models.ReviewRecord, error)
}

func (f *FuncSource) Name() string { return f.SourceName }

func (f *FuncSource) Reviews(ctx context.Context, q models.ScrapeQuery) ([]models.ReviewRecord, error) {
	return f.Fn(ctx, q)
}

// Result is the merged outcome of one Collect call.
type Result struct {
	Reviews  []models.ReviewRecord
	Statuses []models.SourceStatus
}

// Failed reports whether every source that ran failed.
func (r *Result) Failed() bool {
	if len(r.Statuses) == 0 {
		return false
	}
	for _, s := range r.Statuses {
		if s.Error == nil {
			return false
		}
	}
	return true
}

// Aggregator runs sources concurrently and merges their records.
type Aggregator struct {
	sources []Source
}

// NewAggregator creates an Aggregator. Source order sets merge priority:
// when two sources return the same text, the earlier source's record wins.
func NewAggregator(srcs ...Source) *Aggregator {
	return &Aggregator{sources: srcs}
}

// Names lists the registered source names in priority order.
func (a *Aggregator) Names() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// Collect queries the sources named in only (all sources when only is
// empty) in parallel. One source failing never fails the others; its
// error is recorded in the returned statuses. Every source shares the
// query's time budget. An unknown name is an INVALID_INPUT error.
func (a *Aggregator) Collect(ctx context.Context, q models.ScrapeQuery, only []string) (*Result, error) {
	selected, err := a.selected(only)
	if err != nil {
		return nil, err
	}

	if q.TimeBudgetMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(q.TimeBudgetMs)*time.Millisecond)
		defer cancel()
	}

	groups := make([][]models.ReviewRecord, len(selected))
	statuses := make([]models.SourceStatus, len(selected))

	var g errgroup.Group
	for i, src := range selected {
		g.Go(func() error {
			start := time.Now()
			recs, err := src.Reviews(ctx, q)
			statuses[i] = models.SourceStatus{
				Name:       src.Name(),
				Count:      len(recs),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				slog.Warn("review source failed", "source", src.Name(), "search", q.SearchText(), "error", err)
				statuses[i].Error = errorDetail(err)
				statuses[i].Count = 0
				return nil
			}
			groups[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	return &Result{
		Reviews:  reviews.Merge(q.MaxResults, groups...),
		Statuses: statuses,
	}, nil
}

func (a *Aggregator) selected(only []string) ([]Source, error) {
	if len(only) == 0 {
		return a.sources, nil
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[n] = true
	}
	var out []Source
	for _, s := range a.sources {
		if want[s.Name()] {
			out = append(out, s)
			delete(want, s.Name())
		}
	}
	for n := range want {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("unknown review source %q", n), nil)
	}
	return out, nil
}

func errorDetail(err error) *models.ErrorDetail {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.ErrorDetail{Code: models.ErrCodeTimeout, Message: err.Error()}
	}
	return &models.ErrorDetail{Code: models.ErrCodeSourceFailed, Message: err.Error()}
}
