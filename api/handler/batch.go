package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/webhook"
)

// JobStore holds in-flight and completed batch jobs. Jobs older than the
// retention period are dropped whenever a new job is created.
type JobStore struct {
	mu        sync.Mutex
	jobs      map[string]*models.BatchJob
	retention time.Duration
	now       func() time.Time
}

// NewJobStore creates a JobStore keeping finished jobs for retention.
func NewJobStore(retention time.Duration) *JobStore {
	return &JobStore{
		jobs:      make(map[string]*models.BatchJob),
		retention: retention,
		now:       time.Now,
	}
}

func (s *JobStore) create(total int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention).Unix()
	for id, job := range s.jobs {
		if job.Status != "processing" && job.CreatedAt < cutoff {
			delete(s.jobs, id)
		}
	}

	id := "batch-" + randomID()
	s.jobs[id] = &models.BatchJob{
		ID:        id,
		Status:    "processing",
		Total:     total,
		Results:   make([]*models.ReviewsResponse, total),
		CreatedAt: s.now().Unix(),
	}
	return id
}

func (s *JobStore) record(id string, idx int, resp *models.ReviewsResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Results[idx] = resp
		job.Completed++
	}
}

// finish sets the final status from the recorded results and returns a
// snapshot of the job.
func (s *JobStore) finish(id string) models.BatchStatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	failed := 0
	for _, r := range job.Results {
		if r == nil || !r.Success {
			failed++
		}
	}
	switch {
	case failed == job.Total:
		job.Status = "failed"
	case failed > 0:
		job.Status = "partial"
	default:
		job.Status = "completed"
	}
	return snapshot(job)
}

// Status returns a snapshot of the job with the given ID.
func (s *JobStore) Status(id string) (models.BatchStatusResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.BatchStatusResponse{}, false
	}
	return snapshot(job), true
}

func snapshot(job *models.BatchJob) models.BatchStatusResponse {
	return models.BatchStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Completed: job.Completed,
		Total:     job.Total,
		Results:   append([]*models.ReviewsResponse(nil), job.Results...),
	}
}

// PostBatch returns a handler for POST /api/v1/batch/reviews.
// It validates the request, creates a batch job, and looks up each
// property in the background with at most concurrency lookups in flight.
// notifier may be nil when webhooks are disabled.
func PostBatch(l *Lookup, jobs *JobStore, notifier *webhook.Notifier, concurrency int) gin.HandlerFunc {
	if concurrency <= 0 {
		concurrency = 2
	}
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}

		id := jobs.create(len(req.Properties))

		// Launch lookups in background.
		go runBatch(l, jobs, notifier, id, req, concurrency)

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     id,
			Status: "processing",
			Total:  len(req.Properties),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch(jobs *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := jobs.Status(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.BatchStatusResponse{ID: c.Param("id"), Status: "not_found"})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func runBatch(l *Lookup, jobs *JobStore, notifier *webhook.Notifier, id string, req models.BatchRequest, concurrency int) {
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, prop := range req.Properties {
		g.Go(func() error {
			jobs.record(id, i, lookupOne(l, prop, req.Options))
			return nil
		})
	}
	_ = g.Wait()

	status := jobs.finish(id)
	slog.Info("batch job finished",
		"id", id,
		"status", status.Status,
		"completed", status.Completed,
		"total", status.Total,
	)

	if notifier != nil && req.WebhookURL != "" {
		notifier.DeliverAsync(req.WebhookURL, &webhook.Event{
			Type:      webhook.EventBatchCompleted,
			JobID:     id,
			Timestamp: time.Now().Unix(),
			Data:      status,
		})
	}
}

// lookupOne runs a single property lookup using the shared batch options.
func lookupOne(l *Lookup, prop models.BatchProperty, opts models.BatchOptions) *models.ReviewsResponse {
	totalStart := time.Now()

	rreq := &models.ReviewsRequest{
		Name:         prop.Name,
		Location:     prop.Location,
		MaxResults:   opts.MaxResults,
		TimeBudgetMs: opts.TimeBudgetMs,
		Sources:      opts.Sources,
	}
	rreq.Defaults()

	resp, err := l.Run(context.Background(), rreq)
	if err != nil {
		var se *models.ScrapeError
		if !errors.As(err, &se) {
			se = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
		}
		return &models.ReviewsResponse{
			Success: false,
			Query:   rreq.Query(),
			Error:   se.ToDetail(),
			Timing: models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			},
		}
	}
	return resp
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
