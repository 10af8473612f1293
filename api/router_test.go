package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/reviewscope/api/handler"
	"github.com/use-agent/reviewscope/cache"
	"github.com/use-agent/reviewscope/categorize"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/sources"
	"github.com/use-agent/reviewscope/webhook"
)

const testKey = "test-key"

type fakeSessions struct{ stats models.SessionStats }

func (f fakeSessions) Stats() models.SessionStats { return f.stats }

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Browser:   config.BrowserConfig{MaxSessions: 2},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{testKey}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

// countingSource returns fixed reviews and counts its invocations.
func countingSource(name string, calls *atomic.Int32, err error) sources.Source {
	return &sources.FuncSource{
		SourceName: name,
		Fn: func(ctx context.Context, q models.ScrapeQuery) ([]models.ReviewRecord, error) {
			calls.Add(1)
			if err != nil {
				return nil, err
			}
			return []models.ReviewRecord{
				{Text: "Someone had a package stolen from the lobby. Staff is friendly.", SourceURL: "https://maps.example/p"},
				{Text: "Quiet building with a nice view of the river.", SourceURL: "https://maps.example/p"},
			}, nil
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, srcs ...sources.Source) http.Handler {
	t.Helper()
	cc := cache.New(10, time.Hour)
	t.Cleanup(cc.Stop)
	lookup := handler.NewLookup(
		sources.NewAggregator(srcs...),
		categorize.New(categorize.DefaultCategories()),
		cc,
	)
	return NewRouter(cfg, Services{
		Lookup:   lookup,
		Notifier: webhook.NewNotifier(""),
		Sessions: fakeSessions{models.SessionStats{MaxSessions: 5, ActiveSessions: 5}},
	}, time.Now())
}

func do(h http.Handler, method, path, body string, withKey bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withKey {
		req.Header.Set("X-API-Key", testKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const validBody = `{"name":"30 West Apartments","location":"Bradenton, FL"}`

func TestHealth_NoAuthAndDegraded(t *testing.T) {
	var calls atomic.Int32
	h := newTestRouter(t, testConfig(), countingSource("maps", &calls, nil))

	w := do(h, http.MethodGet, "/api/v1/health", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded at full session use", resp.Status)
	}
	if resp.SessionStats.MaxSessions != 5 || resp.Version != handler.Version {
		t.Errorf("unexpected health body: %+v", resp)
	}
}

func TestReviews_RequiresAPIKey(t *testing.T) {
	var calls atomic.Int32
	h := newTestRouter(t, testConfig(), countingSource("maps", &calls, nil))

	w := do(h, http.MethodPost, "/api/v1/reviews", validBody, false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", strings.NewReader(validBody))
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("bearer auth: status = %d, want 200", rec.Code)
	}
}

func TestReviews_CollectsAnalysesAndCaches(t *testing.T) {
	var calls atomic.Int32
	h := newTestRouter(t, testConfig(), countingSource("maps", &calls, nil))

	w := do(h, http.MethodPost, "/api/v1/reviews", validBody, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.ReviewsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Reviews) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Summary.Counts[models.CategorySecurity] != 1 {
		t.Errorf("security count = %d, want 1", resp.Summary.Counts[models.CategorySecurity])
	}
	if resp.CacheStatus != "miss" {
		t.Errorf("first call cache status = %q, want miss", resp.CacheStatus)
	}
	if resp.Query.MaxResults != models.DefaultMaxResults {
		t.Errorf("max results = %d, want default %d", resp.Query.MaxResults, models.DefaultMaxResults)
	}

	w = do(h, http.MethodPost, "/api/v1/reviews", `{"name":"30 west apartments","location":"bradenton, fl"}`, true)
	resp = models.ReviewsResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CacheStatus != "hit" {
		t.Errorf("second call cache status = %q, want hit", resp.CacheStatus)
	}
	if calls.Load() != 1 {
		t.Errorf("source called %d times, want 1", calls.Load())
	}
}

func TestReviews_DegradedResponseIsNotCached(t *testing.T) {
	var okCalls, failCalls atomic.Int32
	h := newTestRouter(t, testConfig(),
		countingSource("maps", &failCalls, models.NewScrapeError(models.ErrCodeTimeout, "budget exhausted", nil)),
		countingSource("yelp", &okCalls, nil),
	)

	for i := 0; i < 2; i++ {
		w := do(h, http.MethodPost, "/api/v1/reviews", validBody, true)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 for a degraded result", w.Code)
		}
		var resp models.ReviewsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Degraded() || resp.Sources[0].Error.Code != models.ErrCodeTimeout {
			t.Errorf("sources = %+v, want maps timeout", resp.Sources)
		}
		if resp.CacheStatus != "" {
			t.Errorf("cache status = %q, want empty", resp.CacheStatus)
		}
	}
	if failCalls.Load() != 2 {
		t.Errorf("failing source called %d times, want 2", failCalls.Load())
	}
}

func TestReviews_InvalidInput(t *testing.T) {
	var calls atomic.Int32
	h := newTestRouter(t, testConfig(), countingSource("maps", &calls, nil))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"missing location", `{"name":"30 West"}`},
		{"blank name", `{"name":"   ","location":"Bradenton, FL"}`},
		{"max results too large", `{"name":"a","location":"b","max_results":10000}`},
		{"unknown source", `{"name":"a","location":"b","sources":["nope"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/v1/reviews", tt.body, true)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
			var resp models.ReviewsResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
				t.Errorf("error = %+v, want INVALID_INPUT", resp.Error)
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("source called %d times for invalid input", calls.Load())
	}
}

func TestReport_Formats(t *testing.T) {
	var calls atomic.Int32
	h := newTestRouter(t, testConfig(), countingSource("maps", &calls, nil))

	w := do(h, http.MethodPost, "/api/v1/reviews/report", validBody, true)
	if w.Code != http.StatusOK {
		t.Fatalf("markdown: status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "# Review report: 30 West Apartments") {
		t.Errorf("markdown missing heading:\n%s", w.Body.String())
	}

	w = do(h, http.MethodPost, "/api/v1/reviews/report?format=email", validBody, true)
	var email models.ReportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &email); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if email.Subject != "Review summary: 30 West Apartments, Bradenton, FL" {
		t.Errorf("subject = %q", email.Subject)
	}
	if !strings.Contains(email.Body, "package stolen") {
		t.Errorf("email body missing example sentence:\n%s", email.Body)
	}

	w = do(h, http.MethodPost, "/api/v1/reviews/report?format=html", validBody, true)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("html content type = %q", ct)
	}

	w = do(h, http.MethodPost, "/api/v1/reviews/report?format=pdf", validBody, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d, want 400", w.Code)
	}
}

func TestBatch_CompletesAndNotifies(t *testing.T) {
	events := make(chan webhook.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev webhook.Event
		_ = json.Unmarshal(body, &ev)
		events <- ev
	}))
	defer hook.Close()

	var calls atomic.Int32
	h := newTestRouter(t, testConfig(), countingSource("maps", &calls, nil))

	payload, _ := json.Marshal(map[string]any{
		"properties": []map[string]string{
			{"name": "30 West Apartments", "location": "Bradenton, FL"},
			{"name": "Harbor Point", "location": "Tampa, FL"},
		},
		"webhook_url": hook.URL,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch/reviews", bytes.NewReader(payload))
	req.Header.Set("X-API-Key", testKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var created models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Total != 2 || created.Status != "processing" {
		t.Fatalf("unexpected batch response: %+v", created)
	}

	var status models.BatchStatusResponse
	deadline := time.Now().Add(5 * time.Second)
	for {
		w := do(h, http.MethodGet, "/api/v1/batch/"+created.ID, "", true)
		status = models.BatchStatusResponse{}
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if status.Status != "processing" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("batch did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status.Status != "completed" || status.Completed != 2 || len(status.Results) != 2 {
		t.Fatalf("unexpected final status: %+v", status)
	}
	if status.Results[1].Query.SubjectName != "Harbor Point" {
		t.Errorf("results out of order: %+v", status.Results[1].Query)
	}

	select {
	case ev := <-events:
		if ev.Type != webhook.EventBatchCompleted || ev.JobID != created.ID {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestBatch_NotFoundAndInvalid(t *testing.T) {
	var calls atomic.Int32
	h := newTestRouter(t, testConfig(), countingSource("maps", &calls, nil))

	if w := do(h, http.MethodGet, "/api/v1/batch/batch-missing", "", true); w.Code != http.StatusNotFound {
		t.Errorf("missing job: status = %d, want 404", w.Code)
	}
	if w := do(h, http.MethodPost, "/api/v1/batch/reviews", `{"properties":[]}`, true); w.Code != http.StatusBadRequest {
		t.Errorf("empty batch: status = %d, want 400", w.Code)
	}
}

func TestRateLimit_RejectsBurst(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}
	var calls atomic.Int32
	h := newTestRouter(t, cfg, countingSource("maps", &calls, nil))

	if w := do(h, http.MethodPost, "/api/v1/reviews", validBody, true); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", w.Code)
	}
	w := do(h, http.MethodPost, "/api/v1/reviews", validBody, true)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}
