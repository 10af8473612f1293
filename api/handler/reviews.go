package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/reviewscope/cache"
	"github.com/use-agent/reviewscope/categorize"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/sources"
)

// Collector gathers merged reviews from the configured sources.
type Collector interface {
	Collect(ctx context.Context, q models.ScrapeQuery, only []string) (*sources.Result, error)
}

// Lookup runs one review query end to end: cache, collection, analysis.
// It is shared by the single, report and batch handlers.
type Lookup struct {
	sources     Collector
	categorizer *categorize.Categorizer
	cache       *cache.Cache
}

// NewLookup creates a Lookup. cc may be nil to disable caching.
func NewLookup(col Collector, cat *categorize.Categorizer, cc *cache.Cache) *Lookup {
	return &Lookup{sources: col, categorizer: cat, cache: cc}
}

// Run serves req, which must already have defaults applied.
//
// Flow:
//  1. Cache lookup (hit returns immediately).
//  2. Aggregator fan-out across sources   (records collection_ms)
//  3. Keyword categorization              (records analysis_ms)
//  4. Cache store, only when every source succeeded.
func (l *Lookup) Run(ctx context.Context, req *models.ReviewsRequest) (*models.ReviewsResponse, error) {
	totalStart := time.Now()
	q := req.Query()

	// ── 1. Cache lookup ────────────────────────────────────────────
	var cacheKey string
	if l.cache != nil {
		cacheKey = cache.Key(q, req.Sources)
		if cached, hit := l.cache.Get(cacheKey); hit {
			resp := *cached
			resp.CacheStatus = "hit"
			resp.Timing = models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			}
			return &resp, nil
		}
	}

	// ── 2. Collect ─────────────────────────────────────────────────
	collectStart := time.Now()
	res, err := l.sources.Collect(ctx, q, req.Sources)
	if err != nil {
		return nil, err
	}
	collectionMs := time.Since(collectStart).Milliseconds()

	// ── 3. Analyse ─────────────────────────────────────────────────
	analysisStart := time.Now()
	summary := l.categorizer.Summarize(res.Reviews)
	analysisMs := time.Since(analysisStart).Milliseconds()

	resp := &models.ReviewsResponse{
		Success: true,
		Query:   q,
		Reviews: res.Reviews,
		Summary: summary,
		Sources: res.Statuses,
		Timing: models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			CollectionMs: collectionMs,
			AnalysisMs:   analysisMs,
		},
	}

	if res.Failed() {
		slog.Warn("every review source failed",
			"query", q.SearchText(),
			"sources", len(res.Statuses),
		)
	}

	// ── 4. Cache store ─────────────────────────────────────────────
	if l.cache != nil && !resp.Degraded() {
		stored := *resp
		l.cache.Set(cacheKey, &stored)
		resp.CacheStatus = "miss"
	}

	return resp, nil
}

// Reviews returns a handler for POST /api/v1/reviews.
func Reviews(l *Lookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		req, ok := bindReviews(c)
		if !ok {
			return
		}

		resp, err := l.Run(c.Request.Context(), req)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// bindReviews parses and validates a ReviewsRequest, writing a 400 on
// failure.
func bindReviews(c *gin.Context) (*models.ReviewsRequest, bool) {
	var req models.ReviewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
		return nil, false
	}
	req.Defaults()

	if req.Name == "" || req.Location == "" {
		respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
			"name and location must not be blank", nil), models.TimingInfo{})
		return nil, false
	}
	return &req, true
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ReviewsResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSourceFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeReviewsNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeDriverFailure:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
