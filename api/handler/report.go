package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/report"
)

// Report returns a handler for POST /api/v1/reviews/report.
//
// The query parameter format selects the rendering:
//
//	markdown (default)  text/markdown document
//	html                text/html document
//	email               JSON {subject, body} ready to paste into a mail client
func Report(l *Lookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		format := c.DefaultQuery("format", "markdown")
		switch format {
		case "markdown", "html", "email":
		default:
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
				"format must be one of markdown, html, email", nil), models.TimingInfo{})
			return
		}

		req, ok := bindReviews(c)
		if !ok {
			return
		}

		resp, err := l.Run(c.Request.Context(), req)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		r := &report.Report{
			Name:        req.Name,
			Location:    req.Location,
			Reviews:     resp.Reviews,
			Summary:     resp.Summary,
			Sources:     resp.Sources,
			GeneratedAt: time.Now().UTC(),
		}

		switch format {
		case "email":
			subject, body, err := report.Email(r)
			if err != nil {
				respondError(c, err, models.TimingInfo{})
				return
			}
			c.JSON(http.StatusOK, models.ReportResponse{
				Success: true,
				Subject: subject,
				Body:    body,
			})
		case "html":
			doc, err := report.HTML(r)
			if err != nil {
				respondError(c, err, models.TimingInfo{})
				return
			}
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
		default:
			doc, err := report.Markdown(r)
			if err != nil {
				respondError(c, err, models.TimingInfo{})
				return
			}
			c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(doc))
		}
	}
}
