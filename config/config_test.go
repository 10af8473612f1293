package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Scraper.StagnationThreshold != 4 {
		t.Errorf("StagnationThreshold = %d, want 4", cfg.Scraper.StagnationThreshold)
	}
	if cfg.Scraper.DefaultTimeBudget != 60*time.Second {
		t.Errorf("DefaultTimeBudget = %v, want 60s", cfg.Scraper.DefaultTimeBudget)
	}
	if got := cfg.Sources.HTMLSources; len(got) != 2 || got[0] != "apartments" || got[1] != "yelp" {
		t.Errorf("HTMLSources = %v, want [apartments yelp]", got)
	}
	if cfg.Sources.BlockCooldown != 15*time.Minute {
		t.Errorf("BlockCooldown = %v, want 15m", cfg.Sources.BlockCooldown)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REVIEWSCOPE_STAGNATION_THRESHOLD", "7")
	t.Setenv("REVIEWSCOPE_SCROLL_PAUSE", "250ms")
	t.Setenv("REVIEWSCOPE_HTML_SOURCES", " yelp , ,apartments")
	t.Setenv("REVIEWSCOPE_HEADLESS", "false")
	t.Setenv("REVIEWSCOPE_PORT", "not-a-number")

	cfg := Load()

	if cfg.Scraper.StagnationThreshold != 7 {
		t.Errorf("StagnationThreshold = %d, want 7", cfg.Scraper.StagnationThreshold)
	}
	if cfg.Scraper.ScrollPause != 250*time.Millisecond {
		t.Errorf("ScrollPause = %v, want 250ms", cfg.Scraper.ScrollPause)
	}
	if got := cfg.Sources.HTMLSources; len(got) != 2 || got[0] != "yelp" || got[1] != "apartments" {
		t.Errorf("HTMLSources = %v, want [yelp apartments]", got)
	}
	if cfg.Browser.Headless {
		t.Error("Headless should be false")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("invalid port should fall back to 8080, got %d", cfg.Server.Port)
	}
}

func TestClampBudget(t *testing.T) {
	c := ScraperConfig{DefaultTimeBudget: 60 * time.Second, MaxTimeBudget: 120 * time.Second}

	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero uses default", 0, 60 * time.Second},
		{"negative uses default", -time.Second, 60 * time.Second},
		{"within range", 30 * time.Second, 30 * time.Second},
		{"above max", 10 * time.Minute, 120 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ClampBudget(tt.in); got != tt.want {
				t.Errorf("ClampBudget(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
