package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/reviewscope/api/handler"
	"github.com/use-agent/reviewscope/api/middleware"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/webhook"
)

// batchRetention is how long finished batch jobs stay queryable.
const batchRetention = time.Hour

// Services are the collaborators the HTTP handlers depend on.
type Services struct {
	Lookup   *handler.Lookup
	Notifier *webhook.Notifier     // nil disables batch webhooks
	Sessions handler.StatsProvider // nil when the browser source is off
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is outside auth so monitoring probes always work.
func NewRouter(cfg *config.Config, svc Services, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(svc.Sessions, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Reviews
	protected.POST("/reviews", handler.Reviews(svc.Lookup))
	protected.POST("/reviews/report", handler.Report(svc.Lookup))

	// Batch
	jobs := handler.NewJobStore(batchRetention)
	protected.POST("/batch/reviews", handler.PostBatch(svc.Lookup, jobs, svc.Notifier, cfg.Browser.MaxSessions))
	protected.GET("/batch/:id", handler.GetBatch(jobs))

	return r
}
