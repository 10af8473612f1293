// Package reviews holds the text and result normalizers shared by every
// review source.
package reviews

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
)

// strict strips every tag; review text never carries markup we want to keep.
var strict = bluemonday.StrictPolicy()

// Clean strips stray markup and entities from an extracted review string and
// collapses internal whitespace. Attribute fallbacks (aria-label, data-*)
// occasionally carry escaped HTML, so this is applied to every source.
func Clean(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		s = html.UnescapeString(strict.Sanitize(s))
	}
	return strings.Join(strings.Fields(s), " ")
}

// Key returns the dedup key for a review text: Unicode case-folded and
// whitespace-normalized, so "Great place" and "great  place" collide.
func Key(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// UniqueSet accumulates review texts, deduplicated by Key, preserving the
// first-seen casing and insertion order. It is not safe for concurrent use.
type UniqueSet struct {
	seen  map[string]struct{}
	texts []string
}

// NewUniqueSet returns an empty set.
func NewUniqueSet() *UniqueSet {
	return &UniqueSet{seen: make(map[string]struct{})}
}

// Add inserts text if no case-insensitively equal text is present.
// Empty strings are ignored. It reports whether the set grew.
func (u *UniqueSet) Add(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	k := Key(text)
	if _, ok := u.seen[k]; ok {
		return false
	}
	u.seen[k] = struct{}{}
	u.texts = append(u.texts, text)
	return true
}

// Contains reports whether a case-insensitively equal text is present.
func (u *UniqueSet) Contains(text string) bool {
	_, ok := u.seen[Key(text)]
	return ok
}

// Len returns the number of unique texts.
func (u *UniqueSet) Len() int {
	return len(u.texts)
}

// Texts returns a copy of the texts in insertion order.
func (u *UniqueSet) Texts() []string {
	out := make([]string, len(u.texts))
	copy(out, u.texts)
	return out
}
