package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	errSearchFailed = errors.New("no search variant could be loaded")
	errNoPlace      = errors.New("no place page reached")
	errNoControl    = errors.New("no matching control")
)

// Navigator drives a page from a blank tab to an open reviews view.
type Navigator struct {
	sel          Selectors
	probeTimeout time.Duration
	stepTimeout  time.Duration
	consent      *ConsentHandler
}

// NewNavigator creates a Navigator. probeTimeout bounds each place-page
// signal race; stepTimeout bounds each navigation or click.
func NewNavigator(sel Selectors, probeTimeout, stepTimeout time.Duration) *Navigator {
	return &Navigator{
		sel:          sel,
		probeTimeout: probeTimeout,
		stepTimeout:  stepTimeout,
		consent:      NewConsentHandler(sel, probeTimeout),
	}
}

// Navigation is the outcome of one Navigate call.
type Navigation struct {
	// State is where navigation ended; StateFailed after a fatal step.
	State NavigationState
	// Reached is the furthest state reached before any failure.
	Reached NavigationState
}

// navigation tracks one Navigate call.
type navigation struct {
	page    Page
	text    string
	state   NavigationState
	reached NavigationState
}

// advance moves to next if it is further along. Failed is terminal.
func (n *navigation) advance(next NavigationState) {
	if n.state == StateFailed || next <= n.state {
		return
	}
	n.state = next
	if next != StateFailed {
		n.reached = next
	}
}

func (n *navigation) fail() {
	n.advance(StateFailed)
}

// Navigate opens the place page for searchText and, best-effort, its
// reviews view sorted by newest. An error means the place page could not
// be reached; State is then StateFailed and Reached the last state reached
// before the failure.
func (nv *Navigator) Navigate(ctx context.Context, page Page, searchText string) (Navigation, error) {
	n := &navigation{page: page, text: searchText}

	err := runSteps(ctx, []step{
		{name: "open search", fatal: true, run: func(ctx context.Context) error { return nv.openSearch(ctx, n) }},
		{name: "consent", run: nv.dismissConsent(page)},
		{name: "open place", fatal: true, run: func(ctx context.Context) error { return nv.openPlace(ctx, n) }},
		{name: "consent", run: nv.dismissConsent(page)},
		{name: "open reviews", run: func(ctx context.Context) error { return nv.openReviews(ctx, n) }},
		{name: "consent", run: nv.dismissConsent(page)},
		{name: "apply sort", run: func(ctx context.Context) error { return nv.applySort(ctx, n) }},
	})
	if err != nil {
		n.fail()
	}

	slog.Debug("navigation finished",
		"search", searchText,
		"state", n.state.String(),
		"reached", n.reached.String(),
		"error", err,
	)
	return Navigation{State: n.state, Reached: n.reached}, err
}

func (nv *Navigator) dismissConsent(page Page) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := nv.consent.Dismiss(ctx, page)
		return err
	}
}

// openSearch loads each search URL variant in order until one shows a
// place-page signal. When none does but at least one loaded, the last
// loaded page is kept as a result list for openPlace.
func (nv *Navigator) openSearch(ctx context.Context, n *navigation) error {
	var lastErr error
	for _, u := range nv.sel.searchURLs(n.text) {
		if err := ctx.Err(); err != nil {
			return err
		}

		navCtx, cancel := context.WithTimeout(ctx, nv.stepTimeout)
		err := n.page.Navigate(navCtx, u)
		cancel()
		if err != nil {
			if errors.Is(err, ErrDriver) {
				return err
			}
			slog.Debug("search variant failed", "url", u, "error", err)
			lastErr = err
			continue
		}
		n.advance(StateSearchOpened)

		if _, err := nv.consent.Dismiss(ctx, n.page); err != nil {
			return err
		}
		if nv.placeSignal(ctx, n.page) {
			n.advance(StatePlaceOpened)
			return nil
		}
		slog.Debug("search variant shows no place page", "url", u)
	}

	if n.state >= StateSearchOpened {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %w", errSearchFailed, lastErr)
	}
	return errSearchFailed
}

// openPlace leaves a result list by clicking the first visible result
// link, falling back to resubmitting the search through the search box.
func (nv *Navigator) openPlace(ctx context.Context, n *navigation) error {
	if n.state >= StatePlaceOpened {
		return nil
	}

	for _, sel := range nv.sel.ResultLinks {
		clicked, err := nv.click(ctx, n.page, sel)
		if err != nil {
			return err
		}
		if !clicked {
			continue
		}
		if nv.placeSignal(ctx, n.page) {
			n.advance(StatePlaceOpened)
			return nil
		}
		slog.Debug("result link opened no place page", "selector", sel)
	}

	for _, sel := range nv.sel.SearchInputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		stepCtx, cancel := context.WithTimeout(ctx, nv.stepTimeout)
		ok, err := n.page.Submit(stepCtx, sel, n.text)
		cancel()
		if err != nil && errors.Is(err, ErrDriver) {
			return err
		}
		if !ok {
			continue
		}
		if nv.placeSignal(ctx, n.page) {
			n.advance(StatePlaceOpened)
			return nil
		}
		break
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return errNoPlace
}

// openReviews clicks the first visible reviews control. Some layouts show
// review cards inline, so a miss leaves the state unchanged.
func (nv *Navigator) openReviews(ctx context.Context, n *navigation) error {
	for _, sel := range nv.sel.ReviewControls {
		clicked, err := nv.click(ctx, n.page, sel)
		if err != nil {
			return err
		}
		if clicked {
			n.advance(StateReviewsOpened)
			return nil
		}
	}
	return errNoControl
}

// applySort opens the sort menu and picks the newest-first option.
func (nv *Navigator) applySort(ctx context.Context, n *navigation) error {
	opened := false
	for _, sel := range nv.sel.SortControls {
		clicked, err := nv.click(ctx, n.page, sel)
		if err != nil {
			return err
		}
		if clicked {
			opened = true
			break
		}
	}
	if !opened {
		return errNoControl
	}

	menuCtx, cancel := context.WithTimeout(ctx, nv.probeTimeout)
	n.page.Exists(menuCtx, nv.sel.SortMenu)
	cancel()

	clickCtx, cancel := context.WithTimeout(ctx, nv.stepTimeout)
	defer cancel()
	clicked, err := n.page.ClickText(clickCtx, nv.sel.SortOption, nv.sel.SortPhrases)
	if err != nil {
		return err
	}
	if !clicked {
		return errNoControl
	}
	n.advance(StateSortApplied)
	return nil
}

// click clicks the first visible element matching sel within one step
// timeout. Only driver failures are returned as errors.
func (nv *Navigator) click(ctx context.Context, page Page, sel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	stepCtx, cancel := context.WithTimeout(ctx, nv.stepTimeout)
	defer cancel()

	clicked, err := page.ClickVisible(stepCtx, sel)
	if err != nil {
		if errors.Is(err, ErrDriver) {
			return false, err
		}
		slog.Debug("click failed", "selector", sel, "error", err)
		return false, nil
	}
	return clicked, nil
}

func (nv *Navigator) placeSignal(ctx context.Context, page Page) bool {
	return raceProbes(ctx, page, nv.sel.PlaceProbes, nv.probeTimeout)
}
