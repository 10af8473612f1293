package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/reviewscope/api"
	"github.com/use-agent/reviewscope/api/handler"
	"github.com/use-agent/reviewscope/cache"
	"github.com/use-agent/reviewscope/categorize"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/htmlsource"
	"github.com/use-agent/reviewscope/scraper"
	"github.com/use-agent/reviewscope/sources"
	"github.com/use-agent/reviewscope/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("reviewscope starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
	)

	svc := api.Services{}
	var srcs []sources.Source

	// ── 3. Browser-driven maps source (launches Chrome) ─────────────
	if cfg.Sources.EnableMaps {
		browser, err := scraper.NewRodBrowser(cfg.Browser, cfg.Scraper)
		if err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer browser.Close()
		svc.Sessions = browser

		sc := scraper.New(browser, cfg.Scraper)
		srcs = append(srcs, &sources.FuncSource{SourceName: "maps", Fn: sc.Scrape})
	}

	// ── 4. HTML sources ─────────────────────────────────────────────
	fetcher := htmlsource.NewFetcher(cfg.Browser.DefaultProxy, cfg.Sources.HTMLTimeout)
	defer fetcher.Close()

	cooldown := htmlsource.NewCooldown(cfg.Sources.BlockCooldown)
	sites := htmlsource.DefaultSites()
	for _, name := range cfg.Sources.HTMLSources {
		site, ok := sites[name]
		if !ok {
			slog.Warn("unknown html source, skipping", "source", name)
			continue
		}
		src, err := htmlsource.New(site, fetcher, cfg.Scraper.MinReviewLength)
		if err != nil {
			slog.Error("invalid html source", "source", name, "error", err)
			os.Exit(1)
		}
		srcs = append(srcs, src.UseCooldown(cooldown))
	}
	if len(srcs) == 0 {
		slog.Error("no review sources enabled")
		os.Exit(1)
	}
	agg := sources.NewAggregator(srcs...)
	slog.Info("review sources ready", "sources", agg.Names())

	// ── 5. Cache, analysis, webhooks ────────────────────────────────
	var cc *cache.Cache
	if cfg.Cache.Enabled {
		cc = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
		defer cc.Stop()
	}
	svc.Lookup = handler.NewLookup(agg, categorize.New(categorize.DefaultCategories()), cc)
	svc.Notifier = webhook.NewNotifier(cfg.Webhook.Secret)

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, svc, time.Now())

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// In-flight scrapes are bounded by the maximum time budget.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.MaxTimeBudget+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("reviewscope stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
