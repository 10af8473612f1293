package scraper

// NavigationState is the furthest point the navigator has reached.
// States only move forward within one scrape.
type NavigationState int

const (
	StateIdle NavigationState = iota
	StateSearchOpened
	StatePlaceOpened
	StateReviewsOpened
	StateSortApplied
	StateFailed
)

func (s NavigationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearchOpened:
		return "search_opened"
	case StatePlaceOpened:
		return "place_opened"
	case StateReviewsOpened:
		return "reviews_opened"
	case StateSortApplied:
		return "sort_applied"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
