package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
)

func TestCardText_Best(t *testing.T) {
	tests := []struct {
		name string
		card cardText
		want string
	}{
		{"long over short", cardText{long: "Full expanded review", short: "Full exp…"}, "Full expanded review"},
		{"short when no long", cardText{short: "Snippet only"}, "Snippet only"},
		{"blank long skipped", cardText{long: "  \n", short: "Snippet"}, "Snippet"},
		{"attribute fallback", cardText{attrs: []string{"", "From aria-description"}}, "From aria-description"},
		{"first attribute wins", cardText{attrs: []string{"data text", "aria text"}}, "data text"},
		{"text node over attribute", cardText{short: "Snippet", attrs: []string{"data text"}}, "Snippet"},
		{"nothing", cardText{attrs: []string{" "}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.card.best(); got != tt.want {
				t.Errorf("best() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultReviewPatterns(t *testing.T) {
	sel := DefaultSelectors()
	seen := map[string]bool{}
	for i, p := range sel.ReviewPatterns {
		if p.Name == "" || p.Card == "" {
			t.Errorf("pattern %d has empty name or card: %+v", i, p)
		}
		if seen[p.Name] {
			t.Errorf("duplicate pattern name %q", p.Name)
		}
		seen[p.Name] = true
		if len(p.Long)+len(p.Short)+len(p.Attrs) == 0 {
			t.Errorf("pattern %q has no text source", p.Name)
		}
		if got := sel.cardFor(p.Name); got != p.Card {
			t.Errorf("cardFor(%q) = %q, want %q", p.Name, got, p.Card)
		}
	}
	if cards := sel.cardSelectors(); len(cards) != len(sel.ReviewPatterns) || cards[0] != sel.ReviewPatterns[0].Card {
		t.Errorf("cardSelectors() = %v, want pattern cards in order", cards)
	}
}

func TestWrapDriver(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		driver bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, false},
		{"element not found", fmt.Errorf("click: %w", &rod.ElementNotFoundError{}), false},
		{"navigation", &rod.NavigationError{Reason: "net::ERR_ABORTED"}, false},
		{"not interactable", &rod.NotInteractableError{}, false},
		{"cdp page error", &cdp.Error{Code: -32000, Message: "Cannot find context with specified id"}, false},
		{"cdp target gone", &cdp.Error{Code: -32000, Message: "No target with given id found"}, true},
		{"websocket closed", errors.New("websocket: close 1006"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapDriver(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("wrapDriver(nil) = %v", got)
				}
				return
			}
			if errors.Is(got, ErrDriver) != tt.driver {
				t.Errorf("wrapDriver(%v) driver = %v, want %v", tt.err, !tt.driver, tt.driver)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("wrapDriver(%v) = %v, lost the original error", tt.err, got)
			}
		})
	}
}
