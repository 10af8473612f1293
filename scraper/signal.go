package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// raceProbes waits up to timeout for any of selectors to appear on page.
// All probes run concurrently; the first hit cancels the rest. It reports
// false when every probe misses, the timeout passes, or ctx is done.
func raceProbes(ctx context.Context, page Page, selectors []string, timeout time.Duration) bool {
	if len(selectors) == 0 {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hits := make(chan string, len(selectors))
	var wg sync.WaitGroup

	for _, sel := range selectors {
		wg.Add(1)
		go func(sel string) {
			defer wg.Done()
			if page.Exists(probeCtx, sel) {
				hits <- sel
			}
		}(sel)
	}

	go func() {
		wg.Wait()
		close(hits)
	}()

	for sel := range hits {
		cancel()
		slog.Debug("probe matched", "selector", sel)
		return true
	}
	return false
}
