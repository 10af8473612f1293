package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ConsentHandler dismisses cookie and consent interstitials. It searches
// the top document and every frame for a control whose label matches one
// of its phrases.
type ConsentHandler struct {
	selector string
	phrases  []string
	timeout  time.Duration
}

// NewConsentHandler builds a handler from the consent chain in sel.
func NewConsentHandler(sel Selectors, timeout time.Duration) *ConsentHandler {
	return &ConsentHandler{
		selector: sel.ConsentControls,
		phrases:  sel.ConsentPhrases,
		timeout:  timeout,
	}
}

// Dismiss clicks the first matching consent control, if any, and reports
// whether it did. Absence of a prompt is the common case and not an error.
// A driver failure is returned so the caller can abort the session.
func (h *ConsentHandler) Dismiss(ctx context.Context, page Page) (bool, error) {
	clickCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	clicked, err := page.ClickText(clickCtx, h.selector, h.phrases)
	if err != nil {
		if errors.Is(err, ErrDriver) {
			return false, err
		}
		slog.Debug("consent check failed", "error", err)
		return false, nil
	}
	if clicked {
		slog.Debug("consent prompt dismissed")
	}
	return clicked, nil
}
