package models

// ScrapeQuery is the immutable input to one review collection.
type ScrapeQuery struct {
	SubjectName  string `json:"subject_name"`
	LocationHint string `json:"location_hint"`
	MaxResults   int    `json:"max_results"`
	TimeBudgetMs int    `json:"time_budget_ms"`
}

// SearchText is the free-text search used against review sources.
func (q ScrapeQuery) SearchText() string {
	if q.LocationHint == "" {
		return q.SubjectName
	}
	return q.SubjectName + " " + q.LocationHint
}

// ReviewRecord is a single normalized review.
type ReviewRecord struct {
	// Text is the trimmed, non-empty review body.
	Text string `json:"text"`

	// SourceURL links back to where the review was found. It may be empty.
	SourceURL string `json:"source_url"`
}

// Category names produced by the keyword categorizer.
const (
	CategorySecurity      = "security"
	CategoryPetWaste      = "pet_waste"
	CategoryAmenityMisuse = "amenity_misuse"
	CategorySafety        = "safety"
)

// CategoryMatch is a review sentence that matched a keyword category.
type CategoryMatch struct {
	Category  string `json:"category"`
	Keyword   string `json:"keyword"`
	Sentence  string `json:"sentence"`
	SourceURL string `json:"source_url,omitempty"`
}

// Summary aggregates category matches across a set of reviews.
type Summary struct {
	TotalReviews   int             `json:"total_reviews"`
	TotalSentences int             `json:"total_sentences"`
	Counts         map[string]int  `json:"counts"`
	Matches        []CategoryMatch `json:"matches"`
}
