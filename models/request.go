package models

import "strings"

// Request defaults and limits.
const (
	DefaultMaxResults   = 50
	DefaultTimeBudgetMs = 60000
	MinTimeBudgetMs     = 1000
)

// ReviewsRequest is the payload for POST /api/v1/reviews.
type ReviewsRequest struct {
	// Name is the property or business name. Required.
	Name string `json:"name" binding:"required"`

	// Location narrows the search, e.g. "Bradenton, FL". Required.
	Location string `json:"location" binding:"required"`

	// MaxResults caps the number of returned reviews.
	// Default: 50. Max: 500.
	MaxResults int `json:"max_results,omitempty" binding:"omitempty,min=1,max=500"`

	// TimeBudgetMs is the hard ceiling for the whole collection, in
	// milliseconds. Clamped to the server's configured maximum.
	// Default: 60000.
	TimeBudgetMs int `json:"time_budget_ms,omitempty" binding:"omitempty,min=1000"`

	// Sources restricts collection to the named review sources.
	// Empty means every configured source.
	Sources []string `json:"sources,omitempty"`
}

// Defaults trims input and applies default values to unset fields.
func (r *ReviewsRequest) Defaults() {
	r.Name = strings.TrimSpace(r.Name)
	r.Location = strings.TrimSpace(r.Location)
	if r.MaxResults == 0 {
		r.MaxResults = DefaultMaxResults
	}
	if r.TimeBudgetMs == 0 {
		r.TimeBudgetMs = DefaultTimeBudgetMs
	}
}

// Query converts the request into the immutable scrape input.
func (r *ReviewsRequest) Query() ScrapeQuery {
	return ScrapeQuery{
		SubjectName:  r.Name,
		LocationHint: r.Location,
		MaxResults:   r.MaxResults,
		TimeBudgetMs: r.TimeBudgetMs,
	}
}
