package reviews

import (
	"strings"

	"github.com/use-agent/reviewscope/models"
)

// Normalize converts collected raw texts into the public record list.
//
// Texts keep their first-collected order, are deduplicated case-insensitively,
// and are truncated to maxResults (maxResults <= 0 means no limit). Every
// record carries sharedURL, which may be empty. Normalize is idempotent: the
// same inputs always yield the same records.
func Normalize(texts []string, sharedURL string, maxResults int) []models.ReviewRecord {
	set := NewUniqueSet()
	records := make([]models.ReviewRecord, 0, len(texts))
	sharedURL = strings.TrimSpace(sharedURL)

	for _, t := range texts {
		if maxResults > 0 && len(records) >= maxResults {
			break
		}
		t = strings.TrimSpace(t)
		if !set.Add(t) {
			continue
		}
		records = append(records, models.ReviewRecord{Text: t, SourceURL: sharedURL})
	}
	return records
}

// Merge combines the records of several sources, in argument order, keeping
// the first record for each case-insensitively equal text. maxResults <= 0
// means no limit.
func Merge(maxResults int, groups ...[]models.ReviewRecord) []models.ReviewRecord {
	set := NewUniqueSet()
	var merged []models.ReviewRecord

	for _, g := range groups {
		for _, r := range g {
			if maxResults > 0 && len(merged) >= maxResults {
				return merged
			}
			if !set.Add(r.Text) {
				continue
			}
			merged = append(merged, models.ReviewRecord{
				Text:      strings.TrimSpace(r.Text),
				SourceURL: r.SourceURL,
			})
		}
	}
	if merged == nil {
		merged = []models.ReviewRecord{}
	}
	return merged
}
