package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types. Scripts and
// XHR are never blockable: the review list is rendered by them.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerDomains are ad and analytics hosts that never carry review data.
var trackerDomains = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"google-analytics.com",
	"googletagmanager.com",
	"googletagservices.com",
	"facebook.net",
	"adnxs.com",
	"adsrvr.org",
	"amazon-adsystem.com",
	"criteo.com",
	"outbrain.com",
	"taboola.com",
	"scorecardresearch.com",
	"hotjar.com",
	"quantserve.com",
}

// requestFilter decides which browser requests are failed early.
type requestFilter struct {
	types    map[proto.NetworkResourceType]struct{}
	trackers map[string]struct{}
}

func newRequestFilter(blockedTypes []string, blockTrackers bool) *requestFilter {
	f := &requestFilter{types: make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))}
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			f.types[rt] = struct{}{}
		}
	}
	if blockTrackers {
		f.trackers = make(map[string]struct{}, len(trackerDomains))
		for _, d := range trackerDomains {
			f.trackers[d] = struct{}{}
		}
	}
	return f
}

func (f *requestFilter) empty() bool {
	return len(f.types) == 0 && len(f.trackers) == 0
}

// blocks reports whether a request of type rt to rawURL should fail.
func (f *requestFilter) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := f.types[rt]; ok {
		return true
	}
	if len(f.trackers) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	// Walk up parent domains: "pagead2.googlesyndication.com" matches
	// "googlesyndication.com".
	host := strings.ToLower(u.Hostname())
	for host != "" {
		if _, ok := f.trackers[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return false
}

// setupHijack installs the request filter on page and returns the running
// router, or nil when there is nothing to block. The caller stops it.
func setupHijack(page *rod.Page, blockedTypes []string, blockTrackers bool) *rod.HijackRouter {
	f := newRequestFilter(blockedTypes, blockTrackers)
	if f.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if f.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
