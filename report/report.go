// Package report renders a review summary as a copyable email and as an
// exportable Markdown document.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
	"time"

	"github.com/use-agent/reviewscope/models"
)

// Report is everything a rendered summary shows.
type Report struct {
	Name        string
	Location    string
	Reviews     []models.ReviewRecord
	Summary     models.Summary
	Sources     []models.SourceStatus
	GeneratedAt time.Time

	// MaxExamples caps the example sentences listed per category.
	MaxExamples int
}

// CategoryRow is one line of the category table.
type CategoryRow struct {
	Name     string
	Count    int
	Examples []models.CategoryMatch
}

// Rows returns the categories ordered by count, highest first, then name.
func (r *Report) Rows() []CategoryRow {
	limit := r.MaxExamples
	if limit <= 0 {
		limit = 3
	}
	rows := make([]CategoryRow, 0, len(r.Summary.Counts))
	for name, n := range r.Summary.Counts {
		rows = append(rows, CategoryRow{Name: name, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	for i := range rows {
		for _, m := range r.Summary.Matches {
			if m.Category == rows[i].Name && len(rows[i].Examples) < limit {
				rows[i].Examples = append(rows[i].Examples, m)
			}
		}
	}
	return rows
}

var emailTmpl = template.Must(template.New("email").Parse(
	`Hi,

Here is a summary of {{.TotalReviews}} public reviews for {{.R.Name}} ({{.R.Location}}).
{{range .Rows}}
{{.Name}}: {{.Count}} mention(s)
{{- range .Examples}}
  - "{{.Sentence}}"{{if .SourceURL}} ({{.SourceURL}}){{end}}
{{- end}}
{{end}}
Generated {{.R.GeneratedAt.Format "2006-01-02 15:04 MST"}}.
`))

// Email returns a subject line and plain-text body ready to paste into a
// mail client.
func Email(r *Report) (subject, body string, err error) {
	subject = fmt.Sprintf("Review summary: %s, %s", r.Name, r.Location)

	var buf bytes.Buffer
	err = emailTmpl.Execute(&buf, map[string]any{
		"R":            r,
		"Rows":         r.Rows(),
		"TotalReviews": len(r.Reviews),
	})
	if err != nil {
		return "", "", fmt.Errorf("report: render email: %w", err)
	}
	return subject, buf.String(), nil
}
