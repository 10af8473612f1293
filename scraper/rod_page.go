package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// scrollMarker tags the pinned scroll container so ScrollReviews can find
// it again without keeping a remote object alive between iterations.
const scrollMarker = "data-reviewscope-scroll"

// rodPage implements Page on a single rod page.
type rodPage struct {
	page *rod.Page
}

func (r *rodPage) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return wrapDriver(err)
	}
	if err := p.WaitLoad(); err != nil {
		return wrapDriver(err)
	}
	return nil
}

func (r *rodPage) Exists(ctx context.Context, selector string) bool {
	_, err := r.page.Context(ctx).Element(selector)
	return err == nil
}

func (r *rodPage) ClickVisible(ctx context.Context, selector string) (bool, error) {
	el, err := r.firstVisible(ctx, selector)
	if err != nil || el == nil {
		return false, err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, wrapDriver(err)
	}
	return true, nil
}

const clickTextJS = `(sel, phrases) => {
	const visible = el => !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
	const label = el => (el.getAttribute('aria-label') || el.innerText || el.value || '').trim().toLowerCase();
	const els = Array.from(document.querySelectorAll(sel)).filter(visible);
	for (const phrase of phrases) {
		for (const el of els) {
			if (label(el).includes(phrase)) {
				el.click();
				return true;
			}
		}
	}
	return false;
}`

func (r *rodPage) ClickText(ctx context.Context, selector string, phrases []string) (bool, error) {
	lowered := make([]string, len(phrases))
	for i, ph := range phrases {
		lowered[i] = strings.ToLower(ph)
	}

	p := r.page.Context(ctx)
	res, err := p.Eval(clickTextJS, selector, lowered)
	if err != nil {
		return false, wrapDriver(err)
	}
	if res.Value.Bool() {
		return true, nil
	}

	// Consent dialogs are often rendered inside an embedded frame.
	frames, err := p.Elements("iframe")
	if err != nil {
		return false, wrapDriver(err)
	}
	for _, f := range frames {
		frame, err := f.Frame()
		if err != nil {
			slog.Debug("frame not accessible", "error", err)
			continue
		}
		res, err := frame.Context(ctx).Eval(clickTextJS, selector, lowered)
		if err != nil {
			slog.Debug("frame click failed", "error", err)
			continue
		}
		if res.Value.Bool() {
			return true, nil
		}
	}
	return false, nil
}

func (r *rodPage) Submit(ctx context.Context, selector, text string) (bool, error) {
	el, err := r.firstVisible(ctx, selector)
	if err != nil || el == nil {
		return false, err
	}
	if err := el.SelectAllText(); err != nil {
		slog.Debug("select search text failed", "error", err)
	}
	if err := el.Input(text); err != nil {
		return false, wrapDriver(err)
	}
	if err := el.Type(input.Enter); err != nil {
		return false, wrapDriver(err)
	}
	return true, nil
}

const expandJS = `(sels) => {
	let n = 0;
	for (const sel of sels) {
		for (const el of document.querySelectorAll(sel)) {
			if (el.offsetWidth || el.offsetHeight) {
				try { el.click(); n++; } catch (e) {}
			}
		}
	}
	return n;
}`

func (r *rodPage) Expand(ctx context.Context, selectors []string) error {
	res, err := r.page.Context(ctx).Eval(expandJS, selectors)
	if err != nil {
		return wrapDriver(err)
	}
	if n := res.Value.Int(); n > 0 {
		slog.Debug("expanded truncated reviews", "count", n)
	}
	return nil
}

const reviewTextsJS = `(card, longs, shorts, attrs) => {
	const text = (el, sels) => {
		for (const sel of sels) {
			const n = el.querySelector(sel);
			if (n && n.innerText && n.innerText.trim()) return n.innerText;
		}
		return '';
	};
	return Array.from(document.querySelectorAll(card)).map(el => ({
		long: text(el, longs),
		short: text(el, shorts),
		attrs: attrs.map(a => el.getAttribute(a) || ''),
	}));
}`

// cardText is the raw text found on one review card.
type cardText struct {
	long  string
	short string
	attrs []string
}

// best prefers the expanded text, then the snippet, then the first
// non-blank attribute in pattern order.
func (c cardText) best() string {
	for _, t := range append([]string{c.long, c.short}, c.attrs...) {
		if strings.TrimSpace(t) != "" {
			return t
		}
	}
	return ""
}

func (r *rodPage) ReviewTexts(ctx context.Context, pattern ReviewPattern) ([]string, error) {
	res, err := r.page.Context(ctx).Eval(reviewTextsJS,
		pattern.Card, nonNil(pattern.Long), nonNil(pattern.Short), nonNil(pattern.Attrs))
	if err != nil {
		return nil, wrapDriver(err)
	}
	arr := res.Value.Arr()
	texts := make([]string, 0, len(arr))
	for _, v := range arr {
		c := cardText{long: v.Get("long").Str(), short: v.Get("short").Str()}
		for _, a := range v.Get("attrs").Arr() {
			c.attrs = append(c.attrs, a.Str())
		}
		texts = append(texts, c.best())
	}
	return texts, nil
}

const pinJS = `(card, marker) => {
	document.querySelectorAll('[' + marker + ']').forEach(e => e.removeAttribute(marker));
	const first = document.querySelector(card);
	let n = first ? first.parentElement : null;
	while (n && n !== document.body && n !== document.documentElement) {
		const oy = getComputedStyle(n).overflowY;
		if ((oy === 'auto' || oy === 'scroll') && n.scrollHeight > n.clientHeight) {
			n.setAttribute(marker, '1');
			return true;
		}
		n = n.parentElement;
	}
	return false;
}`

func (r *rodPage) PinScrollContainer(ctx context.Context, cardSelector string) (bool, error) {
	if cardSelector == "" {
		return false, nil
	}
	res, err := r.page.Context(ctx).Eval(pinJS, cardSelector, scrollMarker)
	if err != nil {
		return false, wrapDriver(err)
	}
	return res.Value.Bool(), nil
}

const scrollJS = `(marker) => {
	const el = document.querySelector('[' + marker + ']') || document.scrollingElement || document.documentElement;
	el.scrollTop = el.scrollTop + el.scrollHeight;
	return el.scrollTop;
}`

func (r *rodPage) ScrollReviews(ctx context.Context) error {
	if _, err := r.page.Context(ctx).Eval(scrollJS, scrollMarker); err != nil {
		return wrapDriver(err)
	}
	return nil
}

const shareURLJS = `() => {
	const canon = document.querySelector('link[rel="canonical"]');
	if (canon && canon.href) return canon.href;
	const og = document.querySelector('meta[property="og:url"], meta[itemprop="url"]');
	if (og && og.content) return og.content;
	if (location.href.includes('/maps/place/')) return location.href.split('?')[0];
	return '';
}`

func (r *rodPage) ShareURL(ctx context.Context) (string, error) {
	res, err := r.page.Context(ctx).Eval(shareURLJS)
	if err != nil {
		return "", wrapDriver(err)
	}
	return strings.TrimSpace(res.Value.Str()), nil
}

// firstVisible returns the first visible element matching selector, or nil
// when none is. It does not wait for elements to appear.
func (r *rodPage) firstVisible(ctx context.Context, selector string) (*rod.Element, error) {
	els, err := r.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, wrapDriver(err)
	}
	for _, el := range els {
		if ok, err := el.Visible(); err == nil && ok {
			return el, nil
		}
	}
	return nil, nil
}

// wrapDriver marks err as a driver failure unless it is a deadline or a
// page-level condition (missing element, failed navigation, script error)
// the caller can recover from.
func wrapDriver(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var (
		notFound  *rod.ElementNotFoundError
		objGone   *rod.ObjectNotFoundError
		evalErr   *rod.EvalError
		navErr    *rod.NavigationError
		invisible *rod.InvisibleShapeError
		covered   *rod.CoveredError
		noInput   *rod.NotInteractableError
		cdpErr    *cdp.Error
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &objGone), errors.As(err, &evalErr),
		errors.As(err, &navErr), errors.As(err, &invisible), errors.As(err, &covered),
		errors.As(err, &noInput):
		return err
	case errors.As(err, &cdpErr) && !strings.Contains(strings.ToLower(cdpErr.Message), "target"):
		return err
	}
	return fmt.Errorf("%w: %w", ErrDriver, err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
