package scraper

import (
	"net/url"
	"strings"
)

// Selectors holds every ordered fallback chain the navigator and collector
// walk. Earlier entries are preferred; the UI ships several layouts at once,
// so later entries cover older or regional variants.
type Selectors struct {
	// SearchURLs are fmt-free templates; "{q}" is replaced by the
	// query-escaped search text.
	SearchURLs []string

	// PlaceProbes signal that a single place is open. Any one is enough.
	PlaceProbes []string

	ResultLinks  []string
	SearchInputs []string

	ReviewControls []string

	SortControls []string
	SortMenu     string
	SortOption   string
	SortPhrases  []string

	ConsentControls string
	ConsentPhrases  []string

	ReadMore []string

	ReviewPatterns []ReviewPattern
}

// DefaultSelectors returns the chains for the map review UI.
func DefaultSelectors() Selectors {
	return Selectors{
		SearchURLs: []string{
			"https://www.google.com/maps/search/?api=1&query={q}&hl=en",
			"https://www.google.com/maps/search/{q}?hl=en",
			"https://www.google.com/maps?q={q}&hl=en",
		},
		PlaceProbes: []string{
			// reviews affordance
			`button[jsaction*="pane.reviewChart.moreReviews"], button[jsaction*="pane.rating.moreReviews"]`,
			// heading
			`h1.DUwDvf, h1.fontHeadlineLarge`,
			// reviews tab
			`button[role="tab"][aria-label*="Reviews"], button[role="tab"][data-tab-index="1"]`,
		},
		ResultLinks: []string{
			`a.hfpxzc`,
			`div[role="feed"] a[href*="/maps/place/"]`,
			`div.Nv2PK a[href]`,
			`a[href*="/maps/place/"]`,
		},
		SearchInputs: []string{
			`input#searchboxinput`,
			`input[name="q"]`,
			`input[aria-label*="Search"]`,
		},
		ReviewControls: []string{
			`button[jsaction*="pane.rating.moreReviews"]`,
			`button[jsaction*="pane.reviewChart.moreReviews"]`,
			`button[role="tab"][aria-label*="Reviews"]`,
			`a[href*="/reviews"], button[aria-label*=" reviews"]`,
		},
		SortControls: []string{
			`button[aria-label="Sort reviews"]`,
			`button[aria-label*="Sort"]`,
			`button[data-value="Sort"]`,
		},
		SortMenu:    `div[role="menu"], ul[role="menu"]`,
		SortOption:  `[role="menuitemradio"], [role="menuitem"], li[data-index]`,
		SortPhrases: []string{"newest"},

		ConsentControls: `button, [role="button"], input[type="submit"], input[type="button"]`,
		ConsentPhrases:  []string{"accept all", "i agree", "accept"},

		ReadMore: []string{
			`button.w8nwRe`,
			`button[aria-label="See more"]`,
			`button[jsaction*="review.expandReview"]`,
			`a.review-more-link`,
		},

		ReviewPatterns: []ReviewPattern{
			{
				Name:  "review-card",
				Card:  `div.jftiEf`,
				Long:  []string{`span.wiI7pd`},
				Short: []string{`div.MyEned span`},
				Attrs: []string{"data-review-text"},
			},
			{
				Name:  "review-id",
				Card:  `div[data-review-id][aria-label]`,
				Long:  []string{`span.wiI7pd`, `div[data-expandable-section] span`},
				Short: []string{`div.MyEned`},
				Attrs: []string{"data-review-text", "aria-description"},
			},
			{
				Name:  "local-reviews",
				Card:  `div.gws-localreviews__google-review`,
				Long:  []string{`span.review-full-text`},
				Short: []string{`span[data-expandable-section]`, `.Jtu6Td`},
			},
			{
				Name:  "schema-review",
				Card:  `[itemprop="review"]`,
				Long:  []string{`[itemprop="reviewBody"]`, `[itemprop="description"]`},
				Attrs: []string{"content", "data-review-text"},
			},
		},
	}
}

// searchURLs expands the search templates for one search text.
func (s Selectors) searchURLs(text string) []string {
	q := url.QueryEscape(text)
	out := make([]string, 0, len(s.SearchURLs))
	for _, tmpl := range s.SearchURLs {
		out = append(out, strings.ReplaceAll(tmpl, "{q}", q))
	}
	return out
}

// cardSelectors lists the card selector of every review pattern.
func (s Selectors) cardSelectors() []string {
	out := make([]string, 0, len(s.ReviewPatterns))
	for _, p := range s.ReviewPatterns {
		out = append(out, p.Card)
	}
	return out
}
