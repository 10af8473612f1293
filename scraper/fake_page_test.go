package scraper

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// fakePage simulates the review UI. Review cards render under card and the
// list grows one batch per scroll; scrolling past the last batch keeps
// showing it.
type fakePage struct {
	mu sync.Mutex

	sel Selectors

	placeAfterNav bool
	navErr        error
	navBlock      bool
	opensPlace    map[string]bool
	clickable     map[string]bool
	submitOpens   bool
	consent       bool
	shareURL      string
	card          string
	batches       [][]string

	onPlace   bool
	navigated []string
	clicked   []string
	scrolls   int
	pinned    string
	closed    int
}

func newFakePage() *fakePage {
	sel := DefaultSelectors()
	return &fakePage{
		sel:           sel,
		placeAfterNav: true,
		opensPlace:    map[string]bool{},
		clickable:     map[string]bool{},
		card:          sel.ReviewPatterns[0].Card,
	}
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	if f.navBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	if f.navErr != nil {
		return f.navErr
	}
	f.onPlace = f.placeAfterNav
	return nil
}

func (f *fakePage) present(selector string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onPlace {
		for _, p := range f.sel.PlaceProbes {
			if p == selector {
				return true
			}
		}
	}
	if selector == f.card && len(f.batches) > 0 {
		return true
	}
	return f.clickable[selector]
}

func (f *fakePage) Exists(ctx context.Context, selector string) bool {
	if f.present(selector) {
		return true
	}
	<-ctx.Done()
	return false
}

func (f *fakePage) ClickVisible(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opensPlace[selector] {
		f.onPlace = true
		f.clicked = append(f.clicked, selector)
		return true, nil
	}
	if f.clickable[selector] {
		f.clicked = append(f.clicked, selector)
		return true, nil
	}
	return false, nil
}

func (f *fakePage) ClickText(ctx context.Context, selector string, phrases []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if selector == f.sel.ConsentControls && f.consent {
		f.consent = false
		f.clicked = append(f.clicked, "consent:"+strings.Join(phrases, "|"))
		return true, nil
	}
	if selector == f.sel.SortOption && f.clickable[f.sel.SortMenu] {
		f.clicked = append(f.clicked, "sort:"+phrases[0])
		return true, nil
	}
	return false, nil
}

func (f *fakePage) Submit(ctx context.Context, selector, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.submitOpens || selector != f.sel.SearchInputs[0] {
		return false, nil
	}
	f.onPlace = true
	f.clicked = append(f.clicked, "submit:"+text)
	return true, nil
}

func (f *fakePage) Expand(ctx context.Context, selectors []string) error {
	return nil
}

func (f *fakePage) ReviewTexts(ctx context.Context, pattern ReviewPattern) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pattern.Card != f.card || len(f.batches) == 0 {
		return nil, nil
	}
	i := f.scrolls
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	return append([]string(nil), f.batches[i]...), nil
}

func (f *fakePage) PinScrollContainer(ctx context.Context, cardSelector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = cardSelector
	return true, nil
}

func (f *fakePage) ScrollReviews(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	return nil
}

func (f *fakePage) ShareURL(ctx context.Context) (string, error) {
	return f.shareURL, nil
}

func (f *fakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakePage) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeFactory struct {
	page *fakePage
	err  error
}

func (ff *fakeFactory) NewSession(ctx context.Context) (Session, error) {
	if ff.err != nil {
		return nil, ff.err
	}
	return ff.page, nil
}

// growingBatches returns n batches where batch i holds reviews 0..i.
func growingBatches(n int) [][]string {
	out := make([][]string, n)
	for i := range out {
		for j := 0; j <= i; j++ {
			out[i] = append(out[i], reviewText(j))
		}
	}
	return out
}

func reviewText(i int) string {
	return "Resident review number " + strconv.Itoa(i) + " about the property"
}
