// Package htmlsource collects reviews from sites that render them in
// server-side HTML: one search page fetch, one listing page fetch, then
// selector-based extraction. Every record carries its listing URL.
package htmlsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/reviews"
)

// Source is a compiled Site bound to a Fetcher.
type Source struct {
	site      Site
	fetcher   *Fetcher
	listing   cascadia.Selector
	reviewSel []cascadia.Selector
	minLength int
	cooldown  *Cooldown
}

// New compiles site's selectors. An invalid selector is a configuration
// error and is reported here rather than on every fetch.
func New(site Site, fetcher *Fetcher, minLength int) (*Source, error) {
	listing, err := cascadia.Compile(site.ListingSelector)
	if err != nil {
		return nil, fmt.Errorf("htmlsource %s: listing selector: %w", site.Name, err)
	}
	s := &Source{site: site, fetcher: fetcher, listing: listing, minLength: minLength}
	for _, raw := range site.ReviewSelectors {
		sel, err := cascadia.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("htmlsource %s: review selector %q: %w", site.Name, raw, err)
		}
		s.reviewSel = append(s.reviewSel, sel)
	}
	return s, nil
}

// UseCooldown benches the site in c whenever it blocks a request.
func (s *Source) UseCooldown(c *Cooldown) *Source {
	s.cooldown = c
	return s
}

// Name returns the site name.
func (s *Source) Name() string { return s.site.Name }

// Reviews fetches the search page for q, follows the first listing link and
// extracts its reviews. A search with no listing yields no records and no
// error. While the site is cooling down after a block, Reviews fails fast
// with ErrBlocked.
func (s *Source) Reviews(ctx context.Context, q models.ScrapeQuery) ([]models.ReviewRecord, error) {
	if s.cooldown != nil {
		if until, benched := s.cooldown.Until(s.site.Name); benched {
			return nil, fmt.Errorf("%w: %s cooling down until %s", ErrBlocked, s.site.Name, until.Format(time.RFC3339))
		}
	}

	records, err := s.collect(ctx, q)
	if err != nil && s.cooldown != nil && errors.Is(err, ErrBlocked) {
		slog.Warn("site blocked, cooling down", "source", s.site.Name, "error", err)
		s.cooldown.Trip(s.site.Name)
	}
	return records, err
}

func (s *Source) collect(ctx context.Context, q models.ScrapeQuery) ([]models.ReviewRecord, error) {
	searchURL := s.searchURL(q)
	doc, err := s.document(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	listingURL, ok := s.firstListing(doc, searchURL)
	if !ok {
		slog.Info("no listing found", "source", s.site.Name, "search", q.SearchText())
		return []models.ReviewRecord{}, nil
	}

	listing, err := s.document(ctx, listingURL)
	if err != nil {
		return nil, err
	}

	texts := s.extract(listing)
	records := reviews.Normalize(texts, listingURL, q.MaxResults)
	slog.Debug("html source finished", "source", s.site.Name, "listing", listingURL, "reviews", len(records))
	return records, nil
}

func (s *Source) searchURL(q models.ScrapeQuery) string {
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(q.SubjectName),
		"{location}", url.QueryEscape(q.LocationHint),
	)
	return r.Replace(s.site.SearchURL)
}

func (s *Source) document(ctx context.Context, target string) (*goquery.Document, error) {
	body, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if looksBlocked(body, s.site.BlockMarkers) {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, target)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("htmlsource: parse %s: %w", target, err)
	}
	return doc, nil
}

// firstListing resolves the first listing link against base.
func (s *Source) firstListing(doc *goquery.Document, base string) (string, bool) {
	href, ok := doc.FindMatcher(s.listing).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return baseURL.ResolveReference(ref).String(), true
}

// extract returns the review texts under the first selector that yields any.
func (s *Source) extract(doc *goquery.Document) []string {
	for _, sel := range s.reviewSel {
		var texts []string
		doc.FindMatcher(sel).Each(func(_ int, n *goquery.Selection) {
			t := reviews.Clean(n.Text())
			if utf8.RuneCountInString(t) >= s.minLength {
				texts = append(texts, t)
			}
		})
		if len(texts) > 0 {
			return texts
		}
	}
	return nil
}
