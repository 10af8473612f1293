package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var htmlTmpl = template.Must(template.New("report").Parse(`<html><body>
<h1>Review report: {{.R.Name}}</h1>
<p>{{.R.Location}} &middot; {{len .R.Reviews}} reviews &middot; {{.R.Summary.TotalSentences}} sentences analysed</p>
<h2>Categories</h2>
<table>
<thead><tr><th>Category</th><th>Mentions</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.Name}}</td><td>{{.Count}}</td></tr>
{{end}}</tbody>
</table>
{{range .Rows}}{{if .Examples}}
<h3>{{.Name}}</h3>
<ul>
{{range .Examples}}<li>{{.Sentence}}{{if .SourceURL}} (<a href="{{.SourceURL}}">source</a>){{end}}</li>
{{end}}</ul>
{{end}}{{end}}
{{if .R.Sources}}<h2>Sources</h2>
<ul>
{{range .R.Sources}}<li>{{.Name}}: {{.Count}} reviews{{if .Error}}, failed ({{.Error.Code}}){{end}}</li>
{{end}}</ul>{{end}}
<h2>Reviews</h2>
<ol>
{{range .R.Reviews}}<li>{{.Text}}</li>
{{end}}</ol>
</body></html>`))

// conv is goroutine-safe and shared by every render.
var conv = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// HTML renders the report as a standalone HTML document. Review text is
// escaped.
func HTML(r *Report) (string, error) {
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, map[string]any{"R": r, "Rows": r.Rows()}); err != nil {
		return "", fmt.Errorf("report: render html: %w", err)
	}
	return buf.String(), nil
}

// Markdown renders the report as Markdown.
func Markdown(r *Report) (string, error) {
	doc, err := HTML(r)
	if err != nil {
		return "", err
	}
	md, err := conv.ConvertString(doc)
	if err != nil {
		return "", fmt.Errorf("report: convert markdown: %w", err)
	}
	return md, nil
}
