package scraper

import (
	"context"
	"errors"
)

// ErrDriver marks failures of the browser session itself (crash,
// disconnect, closed target). Adapters wrap such errors with it so the
// orchestrator can tell them apart from a page that merely lacks an element.
var ErrDriver = errors.New("browser driver failure")

// Page is the browser surface the review scraper drives. Every method must
// return by the time ctx is done; none may wait unboundedly.
type Page interface {
	// Navigate loads url and waits for the document to load.
	Navigate(ctx context.Context, url string) error

	// Exists waits until selector matches an element or ctx is done.
	Exists(ctx context.Context, selector string) bool

	// ClickVisible clicks the first visible element matching selector.
	// It reports false, without error, when nothing visible matches.
	ClickVisible(ctx context.Context, selector string) (bool, error)

	// ClickText clicks the first visible element matching selector whose
	// label (aria-label, text or value) contains one of phrases,
	// case-insensitively. The top document is searched first, then every
	// frame.
	ClickText(ctx context.Context, selector string, phrases []string) (bool, error)

	// Submit types text into the first visible element matching selector
	// and presses Enter.
	Submit(ctx context.Context, selector, text string) (bool, error)

	// Expand clicks every visible element matching any of selectors. Used
	// for "read more" controls on truncated review cards.
	Expand(ctx context.Context, selectors []string) error

	// ReviewTexts returns one entry per rendered element matching
	// pattern.Card, holding the best text found for it (possibly empty).
	ReviewTexts(ctx context.Context, pattern ReviewPattern) ([]string, error)

	// PinScrollContainer locates the nearest scrollable ancestor of the
	// first element matching cardSelector and remembers it for
	// ScrollReviews. It reports false when no such ancestor exists, in
	// which case ScrollReviews scrolls the document's scrolling element.
	PinScrollContainer(ctx context.Context, cardSelector string) (bool, error)

	// ScrollReviews scrolls the pinned container by its content height.
	ScrollReviews(ctx context.Context) error

	// ShareURL returns a canonical link for the open place, or "".
	ShareURL(ctx context.Context) (string, error)
}

// Session is an exclusively-owned browser page scoped to one scrape.
type Session interface {
	Page

	// Close releases the page and its browser context. It is safe to call
	// more than once.
	Close() error
}

// SessionFactory opens a fresh Session for each scrape.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// ReviewPattern describes one markup shape the review list may render in.
// Text selectors are relative to the card element.
type ReviewPattern struct {
	Name string

	// Card selects one element per review.
	Card string

	// Long selects the expanded, full-text node. Preferred when present.
	Long []string

	// Short selects the snippet node.
	Short []string

	// Attrs are text-bearing attributes on the card, tried in order when
	// neither Long nor Short yields text.
	Attrs []string
}
