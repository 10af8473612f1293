package categorize

import (
	"testing"

	"github.com/use-agent/reviewscope/models"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"terminators", "Nice staff. Loud neighbors! Would I return? Maybe", []string{"Nice staff.", "Loud neighbors!", "Would I return?", "Maybe"}},
		{"line breaks", "First line\nsecond   line\r\n", []string{"First line", "second line"}},
		{"ellipsis collapses", "Well... ok.", []string{"Well.", "ok."}},
		{"empty", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sentences(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("Sentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	c := New(DefaultCategories())
	recs := []models.ReviewRecord{
		{Text: "My car was broken into last week. Dog poop everywhere!", SourceURL: "https://a.example"},
		{Text: "The pool is dirty and the area feels unsafe at night.", SourceURL: "https://b.example"},
		{Text: "Great management, speedy maintenance."},
	}

	sum := c.Summarize(recs)

	if sum.TotalReviews != 3 {
		t.Errorf("TotalReviews = %d, want 3", sum.TotalReviews)
	}
	if sum.TotalSentences != 4 {
		t.Errorf("TotalSentences = %d, want 4", sum.TotalSentences)
	}
	want := map[string]int{
		models.CategorySecurity:      1,
		models.CategoryPetWaste:      1,
		models.CategoryAmenityMisuse: 1,
		models.CategorySafety:        1,
	}
	for cat, n := range want {
		if sum.Counts[cat] != n {
			t.Errorf("Counts[%s] = %d, want %d", cat, sum.Counts[cat], n)
		}
	}
	if len(sum.Matches) != 4 {
		t.Fatalf("got %d matches, want 4: %+v", len(sum.Matches), sum.Matches)
	}
	if m := sum.Matches[0]; m.Category != models.CategorySecurity || m.SourceURL != "https://a.example" {
		t.Errorf("first match = %+v", m)
	}
}

func TestSummarize_OneCountPerSentencePerCategory(t *testing.T) {
	c := New([]Category{{Name: "x", Keywords: []string{"Theft", "stolen"}}})
	sum := c.Summarize([]models.ReviewRecord{{Text: "Theft and stolen bikes, theft again"}})
	if sum.Counts["x"] != 1 {
		t.Errorf("Counts[x] = %d, want 1", sum.Counts["x"])
	}
	if sum.Matches[0].Keyword != "theft" {
		t.Errorf("keyword = %q, want theft", sum.Matches[0].Keyword)
	}
}

func TestSummarize_EmptyInput(t *testing.T) {
	sum := New(DefaultCategories()).Summarize(nil)
	if sum.Matches == nil {
		t.Error("Matches should be non-nil")
	}
	if len(sum.Counts) != 4 {
		t.Errorf("Counts should list every category, got %v", sum.Counts)
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		s, kw string
		want  bool
	}{
		{"speedy repairs", "pee", false},
		{"dogs pee on the lawn", "pee", true},
		{"pee", "pee", true},
		{"a break-in happened", "break-in", true},
		{"policeman", "police", false},
	}
	for _, tt := range tests {
		if got := containsWord(tt.s, tt.kw); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.s, tt.kw, got, tt.want)
		}
	}
}
