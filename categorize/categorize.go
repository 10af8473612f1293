// Package categorize splits reviews into sentences and tags each sentence
// with the keyword categories it mentions.
package categorize

import (
	"strings"
	"unicode"

	"github.com/use-agent/reviewscope/models"
)

// Category pairs a category name with the lower-case keywords that signal it.
type Category struct {
	Name     string
	Keywords []string
}

// DefaultCategories returns the built-in keyword lists.
func DefaultCategories() []Category {
	return []Category{
		{Name: models.CategorySecurity, Keywords: []string{
			"security", "break-in", "break in", "broken into", "stolen", "theft",
			"burglar", "robbed", "robbery", "gate code", "gate is broken",
			"package stolen", "packages stolen", "car was broken", "trespass",
		}},
		{Name: models.CategoryPetWaste, Keywords: []string{
			"dog poop", "dog waste", "pet waste", "poop", "feces", "dog mess",
			"pick up after", "urine", "pee",
		}},
		{Name: models.CategoryAmenityMisuse, Keywords: []string{
			"pool is dirty", "dirty pool", "pool closed", "gym is broken",
			"broken equipment", "trash everywhere", "trash overflowing",
			"overflowing dumpster", "laundry room", "grill", "clubhouse",
			"non-residents", "non residents",
		}},
		{Name: models.CategorySafety, Keywords: []string{
			"unsafe", "not safe", "dangerous", "shooting", "gunshot", "gunshots",
			"police", "crime", "assault", "fight", "drug", "lighting is poor",
			"dark parking", "scary",
		}},
	}
}

// Categorizer tags sentences against a fixed category set. It is safe for
// concurrent use.
type Categorizer struct {
	cats []Category
}

// New creates a Categorizer. Keywords are matched case-insensitively.
func New(cats []Category) *Categorizer {
	norm := make([]Category, len(cats))
	for i, c := range cats {
		kws := make([]string, 0, len(c.Keywords))
		for _, k := range c.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		norm[i] = Category{Name: c.Name, Keywords: kws}
	}
	return &Categorizer{cats: norm}
}

// Summarize splits every review into sentences and counts, per category,
// the sentences that mention at least one of its keywords. A sentence
// counts once per category no matter how many keywords it contains.
func (c *Categorizer) Summarize(recs []models.ReviewRecord) models.Summary {
	sum := models.Summary{
		TotalReviews: len(recs),
		Counts:       make(map[string]int, len(c.cats)),
		Matches:      []models.CategoryMatch{},
	}
	for _, cat := range c.cats {
		sum.Counts[cat.Name] = 0
	}

	for _, r := range recs {
		for _, sentence := range Sentences(r.Text) {
			sum.TotalSentences++
			lower := strings.ToLower(sentence)
			for _, cat := range c.cats {
				kw, ok := firstKeyword(lower, cat.Keywords)
				if !ok {
					continue
				}
				sum.Counts[cat.Name]++
				sum.Matches = append(sum.Matches, models.CategoryMatch{
					Category:  cat.Name,
					Keyword:   kw,
					Sentence:  sentence,
					SourceURL: r.SourceURL,
				})
			}
		}
	}
	return sum
}

func firstKeyword(lower string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if containsWord(lower, k) {
			return k, true
		}
	}
	return "", false
}

// containsWord reports whether kw occurs in s starting and ending on a
// word boundary, so "pee" does not match "speed".
func containsWord(s, kw string) bool {
	for off := 0; ; {
		i := strings.Index(s[off:], kw)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(kw)
		if boundary(s, start-1) && boundary(s, end) {
			return true
		}
		off = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r))
}

func hasWord(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// Sentences splits text on sentence terminators and line breaks, dropping
// pieces without any letter or digit.
func Sentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(b.String()), " "); hasWord(s) {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		switch r {
		case '\n', '\r':
			flush()
		case '.', '!', '?':
			b.WriteRune(r)
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}
