package models

// ReviewsResponse is the response for POST /api/v1/reviews.
type ReviewsResponse struct {
	// Success is false only when the request itself could not be served.
	// Individual source failures are reported in Sources instead.
	Success bool `json:"success"`

	// Query echoes the normalized query that produced this response.
	Query ScrapeQuery `json:"query"`

	// Reviews is the merged, deduplicated review list across sources.
	Reviews []ReviewRecord `json:"reviews"`

	// Summary holds keyword-category counts and matching sentences.
	Summary Summary `json:"summary"`

	// Sources reports how each review source fared.
	Sources []SourceStatus `json:"sources"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching disabled).
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// SourceStatus is the outcome of one review source for one query.
type SourceStatus struct {
	Name       string       `json:"name"`
	Count      int          `json:"count"`
	DurationMs int64        `json:"duration_ms"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// Degraded reports whether any source failed.
func (r *ReviewsResponse) Degraded() bool {
	for _, s := range r.Sources {
		if s.Error != nil {
			return true
		}
	}
	return false
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// CollectionMs is the time spent collecting reviews from all sources.
	CollectionMs int64 `json:"collection_ms"`

	// AnalysisMs is the time spent categorizing review sentences.
	AnalysisMs int64 `json:"analysis_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports the state of the browser session limiter.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}

// ReportResponse is the response for POST /api/v1/reviews/report with
// format=email. Markdown and HTML reports are returned as raw documents.
type ReportResponse struct {
	Success bool         `json:"success"`
	Subject string       `json:"subject,omitempty"`
	Body    string       `json:"body,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
