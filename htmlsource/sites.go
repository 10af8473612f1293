package htmlsource

// Site describes one review site reachable by a plain fetch: a search page
// listing properties, and a listing page carrying the reviews.
type Site struct {
	Name string

	// SearchURL is the search page template. "{query}" and "{location}"
	// are replaced by the query-escaped subject name and location hint.
	SearchURL string

	// ListingSelector picks listing links on the search page. The first
	// match is followed.
	ListingSelector string

	// ReviewSelectors pick review text nodes on the listing page, tried in
	// order. The first selector that yields any text wins.
	ReviewSelectors []string

	// BlockMarkers identify bot-wall pages by title or visible text.
	BlockMarkers []string
}

var commonBlockMarkers = []string{
	"captcha",
	"access denied",
	"are you a robot",
	"just a moment",
	"unusual traffic",
}

// DefaultSites returns the built-in sites keyed by name.
func DefaultSites() map[string]Site {
	return map[string]Site{
		"apartments": {
			Name:            "apartments",
			SearchURL:       "https://www.apartments.com/search/?query={query}%20{location}",
			ListingSelector: `article.placard a.property-link, a.property-link, article[data-url] a[href]`,
			ReviewSelectors: []string{
				`.reviewTextContainer .reviewText`,
				`#reviewsSection .reviewText`,
				`[itemprop="reviewBody"]`,
			},
			BlockMarkers: commonBlockMarkers,
		},
		"yelp": {
			Name:            "yelp",
			SearchURL:       "https://www.yelp.com/search?find_desc={query}&find_loc={location}",
			ListingSelector: `h3 a[href^="/biz/"], a[href^="/biz/"]`,
			ReviewSelectors: []string{
				`p[class*="comment"] span[lang]`,
				`li[class*="review"] p span[lang]`,
				`[itemprop="description"]`,
			},
			BlockMarkers: commonBlockMarkers,
		},
	}
}
