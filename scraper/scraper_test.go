package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/models"
)

func testConfig() config.ScraperConfig {
	return config.ScraperConfig{
		DefaultMaxResults:   50,
		DefaultTimeBudget:   5 * time.Second,
		MaxTimeBudget:       30 * time.Second,
		ProbeTimeout:        20 * time.Millisecond,
		StepTimeout:         50 * time.Millisecond,
		ScrollPause:         2 * time.Millisecond,
		StagnationThreshold: 3,
		MinReviewLength:     20,
	}
}

func scrapeCode(t *testing.T, err error) string {
	t.Helper()
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a *models.ScrapeError", err)
	}
	return se.Code
}

func TestScrape_StagnationStopsBelowTarget(t *testing.T) {
	page := newFakePage()
	page.shareURL = "https://maps.example/place/30-west"
	page.batches = [][]string{
		{reviewText(0)},
		{reviewText(0), reviewText(1)},
		{reviewText(1), reviewText(2)},
	}

	s := New(&fakeFactory{page: page}, testConfig())
	got, err := s.Scrape(context.Background(), models.ScrapeQuery{
		SubjectName:  "30 West Apartments",
		LocationHint: "Bradenton, FL",
		MaxResults:   5,
		TimeBudgetMs: 30000,
	})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, r := range got {
		if r.Text != reviewText(i) {
			t.Errorf("record %d = %q, want %q", i, r.Text, reviewText(i))
		}
		if r.SourceURL != page.shareURL {
			t.Errorf("record %d source = %q, want %q", i, r.SourceURL, page.shareURL)
		}
	}
	if page.closeCount() != 1 {
		t.Errorf("session closed %d times, want 1", page.closeCount())
	}
	if len(page.navigated) == 0 || !strings.Contains(page.navigated[0], "30+West+Apartments+Bradenton%2C+FL") {
		t.Errorf("first navigation = %v, want escaped search text", page.navigated)
	}
}

func TestScrape_NoShareURLLeavesSourceEmpty(t *testing.T) {
	page := newFakePage()
	page.batches = [][]string{{reviewText(0), reviewText(1)}}

	got, err := New(&fakeFactory{page: page}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Harbor View", LocationHint: "Tampa, FL", MaxResults: 10, TimeBudgetMs: 5000,
	})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	for _, r := range got {
		if r.SourceURL != "" {
			t.Errorf("SourceURL = %q, want empty", r.SourceURL)
		}
	}
}

func TestScrape_TargetReachedTruncates(t *testing.T) {
	page := newFakePage()
	page.batches = growingBatches(10)

	got, err := New(&fakeFactory{page: page}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Palm Court", LocationHint: "Sarasota, FL", MaxResults: 4, TimeBudgetMs: 5000,
	})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d records, want 4", len(got))
	}
}

func TestScrape_ReviewsNotFound(t *testing.T) {
	page := newFakePage()

	_, err := New(&fakeFactory{page: page}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Empty Place", LocationHint: "Nowhere", MaxResults: 5, TimeBudgetMs: 5000,
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := scrapeCode(t, err); code != models.ErrCodeReviewsNotFound {
		t.Errorf("code = %s, want %s", code, models.ErrCodeReviewsNotFound)
	}
	if page.closeCount() != 1 {
		t.Errorf("session closed %d times, want 1", page.closeCount())
	}
}

func TestScrape_CaseInsensitiveDedup(t *testing.T) {
	page := newFakePage()
	page.batches = [][]string{{
		"Great place to live, staff is friendly",
		"great place to live, staff is friendly",
		"GREAT PLACE TO LIVE, STAFF IS FRIENDLY",
	}}

	got, err := New(&fakeFactory{page: page}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Casa Bella", LocationHint: "Miami, FL", MaxResults: 5, TimeBudgetMs: 5000,
	})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 1 || got[0].Text != "Great place to live, staff is friendly" {
		t.Errorf("got %+v, want one record with first-seen casing", got)
	}
}

func TestScrape_ShortTextsDropped(t *testing.T) {
	page := newFakePage()
	page.batches = [][]string{{"Reviews", "  ", "Sort", reviewText(0)}}

	got, err := New(&fakeFactory{page: page}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Bay Point", LocationHint: "Naples, FL", MaxResults: 5, TimeBudgetMs: 5000,
	})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d records, want 1: %+v", len(got), got)
	}
}

func TestScrape_ProgressIsMonotonic(t *testing.T) {
	page := newFakePage()
	page.batches = [][]string{
		{reviewText(0), reviewText(1)},
		{reviewText(2)}, // virtualized list dropped earlier cards
		{reviewText(1), reviewText(3)},
	}

	var mu sync.Mutex
	var seen []Progress
	s := New(&fakeFactory{page: page}, testConfig(), WithProgressObserver(func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	}))

	got, err := s.Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Lakeside", LocationHint: "Orlando, FL", MaxResults: 50, TimeBudgetMs: 5000,
	})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("got %d records, want 4", len(got))
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i].UniqueCount < seen[i-1].UniqueCount {
			t.Fatalf("unique count decreased: %+v", seen)
		}
		if seen[i].UniqueCount > seen[i-1].UniqueCount && seen[i].StagnationStreak != 0 {
			t.Errorf("streak not reset on growth at iteration %d: %+v", i, seen[i])
		}
	}
	if last := seen[len(seen)-1]; last.StagnationStreak != 3 {
		t.Errorf("final streak = %d, want 3", last.StagnationStreak)
	}
}

func TestScrape_TimeoutDuringNavigation(t *testing.T) {
	page := newFakePage()
	page.navBlock = true
	page.batches = growingBatches(3)

	start := time.Now()
	_, err := New(&fakeFactory{page: page}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Slow Place", LocationHint: "Tampa, FL", MaxResults: 5, TimeBudgetMs: 30,
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := scrapeCode(t, err); code != models.ErrCodeTimeout {
		t.Errorf("code = %s, want %s", code, models.ErrCodeTimeout)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Scrape took %v, budget not enforced", elapsed)
	}
	if page.closeCount() != 1 {
		t.Errorf("session closed %d times, want 1", page.closeCount())
	}
}

func TestScrape_TimeoutDuringCollectionReturnsPartial(t *testing.T) {
	page := newFakePage()
	page.batches = growingBatches(1000)

	cfg := testConfig()
	cfg.ScrollPause = 20 * time.Millisecond
	cfg.StagnationThreshold = 100

	got, err := New(&fakeFactory{page: page}, cfg).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Endless Reviews", LocationHint: "Tampa, FL", MaxResults: 500, TimeBudgetMs: 300,
	})
	if err != nil {
		t.Fatalf("partial collection should not fail: %v", err)
	}
	if len(got) == 0 || len(got) >= 500 {
		t.Errorf("got %d records, want a partial non-empty result", len(got))
	}
	if page.closeCount() != 1 {
		t.Errorf("session closed %d times, want 1", page.closeCount())
	}
}

func TestScrape_TimeoutBeforeFirstExtraction(t *testing.T) {
	page := newFakePage()

	cfg := testConfig()
	cfg.StepTimeout = time.Second

	start := time.Now()
	got, err := New(&fakeFactory{page: page}, cfg).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Slow Cards", LocationHint: "Tampa, FL", MaxResults: 5, TimeBudgetMs: 30,
	})
	if err == nil {
		t.Fatalf("expected a timeout, got %d records", len(got))
	}
	if code := scrapeCode(t, err); code != models.ErrCodeTimeout {
		t.Errorf("code = %s, want %s", code, models.ErrCodeTimeout)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Scrape took %v, budget not enforced", elapsed)
	}
	if page.closeCount() != 1 {
		t.Errorf("session closed %d times, want 1", page.closeCount())
	}
}

func TestCollect_BudgetExpiresBeforeFirstExtraction(t *testing.T) {
	page := newFakePage()
	page.onPlace = true

	c := NewCollector(DefaultSelectors(), CollectorOptions{
		ScrollPause:         time.Millisecond,
		StagnationThreshold: 3,
		MinLength:           20,
		StepTimeout:         time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	col, err := c.Collect(ctx, page, 5)
	if err == nil {
		t.Fatalf("expected a timeout, got %+v", col)
	}
	if code := scrapeCode(t, err); code != models.ErrCodeTimeout {
		t.Errorf("code = %s, want %s", code, models.ErrCodeTimeout)
	}
}

func TestCollect_BudgetExpiresAfterFirstExtraction(t *testing.T) {
	page := newFakePage()
	page.batches = growingBatches(1000)

	c := NewCollector(DefaultSelectors(), CollectorOptions{
		ScrollPause:         5 * time.Millisecond,
		StagnationThreshold: 100,
		MinLength:           20,
		StepTimeout:         time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	col, err := c.Collect(ctx, page, 500)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if col.StopReason != StopDeadline {
		t.Errorf("stop reason = %s, want %s", col.StopReason, StopDeadline)
	}
	if col.Iterations == 0 || len(col.Texts) == 0 {
		t.Errorf("got %d iterations and %d texts, want a partial result", col.Iterations, len(col.Texts))
	}
}

func TestScrape_NavigationFailedCarriesState(t *testing.T) {
	page := newFakePage()
	page.placeAfterNav = false
	page.batches = growingBatches(2)

	_, err := New(&fakeFactory{page: page}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Unknown", LocationHint: "Nowhere", MaxResults: 5, TimeBudgetMs: 5000,
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a ScrapeError", err)
	}
	if se.Code != models.ErrCodeNavigation {
		t.Errorf("code = %s, want %s", se.Code, models.ErrCodeNavigation)
	}
	if se.State != StateSearchOpened.String() {
		t.Errorf("state = %q, want %q", se.State, StateSearchOpened.String())
	}
	if len(page.navigated) != len(DefaultSelectors().SearchURLs) {
		t.Errorf("tried %d search variants, want %d", len(page.navigated), len(DefaultSelectors().SearchURLs))
	}
}

func TestScrape_DriverFailure(t *testing.T) {
	page := newFakePage()
	page.navErr = fmt.Errorf("%w: websocket closed", ErrDriver)

	_, err := New(&fakeFactory{page: page}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "Crash", LocationHint: "Tampa, FL", MaxResults: 5, TimeBudgetMs: 5000,
	})
	if code := scrapeCode(t, err); code != models.ErrCodeDriverFailure {
		t.Errorf("code = %s, want %s", code, models.ErrCodeDriverFailure)
	}
	if len(page.navigated) != 1 {
		t.Errorf("navigation retried after driver failure: %v", page.navigated)
	}
	if page.closeCount() != 1 {
		t.Errorf("session closed %d times, want 1", page.closeCount())
	}
}

func TestScrape_SessionUnavailable(t *testing.T) {
	_, err := New(&fakeFactory{err: errors.New("no chrome")}, testConfig()).Scrape(context.Background(), models.ScrapeQuery{
		SubjectName: "X", LocationHint: "Y", MaxResults: 5, TimeBudgetMs: 5000,
	})
	if code := scrapeCode(t, err); code != models.ErrCodeDriverFailure {
		t.Errorf("code = %s, want %s", code, models.ErrCodeDriverFailure)
	}
}
