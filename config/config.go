package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Sources   SourcesConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions bounds concurrent scrape sessions (one incognito
	// context + one page each).
	MaxSessions int // default: 4

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects anti-detection JS into every session page.
	Stealth bool // default: true

	// AcceptLanguage is sent with every browser request so the review UI
	// renders in a language the label matchers understand.
	AcceptLanguage string // default: "en-US,en;q=0.9"
}

// ScraperConfig controls the review collection core.
type ScraperConfig struct {
	// DefaultMaxResults applies when a query does not set one.
	DefaultMaxResults int // default: 50

	// DefaultTimeBudget applies when a query does not set one.
	DefaultTimeBudget time.Duration // default: 60s

	// MaxTimeBudget is the maximum time budget accepted from clients.
	MaxTimeBudget time.Duration // default: 180s

	// ProbeTimeout bounds each place-page signal probe race.
	ProbeTimeout time.Duration // default: 3s

	// StepTimeout bounds each individual navigation attempt or click.
	StepTimeout time.Duration // default: 10s

	// ScrollPause is the fixed delay after each scroll.
	ScrollPause time.Duration // default: 1200ms

	// StagnationThreshold is the number of consecutive no-growth
	// iterations after which collection stops.
	StagnationThreshold int // default: 4

	// MinReviewLength drops extracted strings shorter than this many runes.
	MinReviewLength int // default: 20

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds blocks well-known ad and tracking domains.
	BlockAds bool // default: true
}

// SourcesConfig controls which review sources run.
type SourcesConfig struct {
	// EnableMaps toggles the browser-driven map review source.
	EnableMaps bool // default: true

	// HTMLSources lists the enabled single-pass HTML sources by name.
	HTMLSources []string // default: ["apartments", "yelp"]

	// HTMLTimeout bounds each HTML page fetch.
	HTMLTimeout time.Duration // default: 15s

	// BlockCooldown benches a site that answered with a bot wall.
	BlockCooldown time.Duration // default: 15m
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the review response cache.
type CacheConfig struct {
	// Enabled toggles the cache.
	Enabled bool // default: true

	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500

	// TTL is how long a cached response stays valid.
	TTL time.Duration // default: 1h
}

// WebhookConfig controls batch completion notifications.
type WebhookConfig struct {
	// Secret signs webhook bodies with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("REVIEWSCOPE_HOST", "0.0.0.0"),
			Port: envIntOr("REVIEWSCOPE_PORT", 8080),
			Mode: envOr("REVIEWSCOPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("REVIEWSCOPE_HEADLESS", true),
			MaxSessions:    envIntOr("REVIEWSCOPE_MAX_SESSIONS", 4),
			DefaultProxy:   os.Getenv("REVIEWSCOPE_PROXY"),
			NoSandbox:      envBoolOr("REVIEWSCOPE_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("REVIEWSCOPE_BROWSER_BIN"),
			Stealth:        envBoolOr("REVIEWSCOPE_STEALTH", true),
			AcceptLanguage: envOr("REVIEWSCOPE_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
		},
		Scraper: ScraperConfig{
			DefaultMaxResults:   envIntOr("REVIEWSCOPE_DEFAULT_MAX_RESULTS", 50),
			DefaultTimeBudget:   envDurationOr("REVIEWSCOPE_DEFAULT_TIME_BUDGET", 60*time.Second),
			MaxTimeBudget:       envDurationOr("REVIEWSCOPE_MAX_TIME_BUDGET", 180*time.Second),
			ProbeTimeout:        envDurationOr("REVIEWSCOPE_PROBE_TIMEOUT", 3*time.Second),
			StepTimeout:         envDurationOr("REVIEWSCOPE_STEP_TIMEOUT", 10*time.Second),
			ScrollPause:         envDurationOr("REVIEWSCOPE_SCROLL_PAUSE", 1200*time.Millisecond),
			StagnationThreshold: envIntOr("REVIEWSCOPE_STAGNATION_THRESHOLD", 4),
			MinReviewLength:     envIntOr("REVIEWSCOPE_MIN_REVIEW_LENGTH", 20),
			BlockedResourceTypes: envSliceOr("REVIEWSCOPE_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("REVIEWSCOPE_BLOCK_ADS", true),
		},
		Sources: SourcesConfig{
			EnableMaps:    envBoolOr("REVIEWSCOPE_MAPS_SOURCE", true),
			HTMLSources:   envSliceOr("REVIEWSCOPE_HTML_SOURCES", []string{"apartments", "yelp"}),
			HTMLTimeout:   envDurationOr("REVIEWSCOPE_HTML_TIMEOUT", 15*time.Second),
			BlockCooldown: envDurationOr("REVIEWSCOPE_HTML_BLOCK_COOLDOWN", 15*time.Minute),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("REVIEWSCOPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("REVIEWSCOPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("REVIEWSCOPE_RATE_RPS", 1.0),
			Burst:             envIntOr("REVIEWSCOPE_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			Enabled:    envBoolOr("REVIEWSCOPE_CACHE_ENABLED", true),
			MaxEntries: envIntOr("REVIEWSCOPE_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("REVIEWSCOPE_CACHE_TTL", time.Hour),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("REVIEWSCOPE_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("REVIEWSCOPE_LOG_LEVEL", "info"),
			Format: envOr("REVIEWSCOPE_LOG_FORMAT", "json"),
		},
	}
}

// ClampBudget bounds a client-requested budget by the configured maximum,
// substituting the default for non-positive values.
func (c ScraperConfig) ClampBudget(budget time.Duration) time.Duration {
	if budget <= 0 {
		budget = c.DefaultTimeBudget
	}
	if c.MaxTimeBudget > 0 && budget > c.MaxTimeBudget {
		budget = c.MaxTimeBudget
	}
	return budget
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
