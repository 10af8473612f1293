package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// reviewsRequest mirrors the Reviewscope API request model.
type reviewsRequest struct {
	Name       string   `json:"name"`
	Location   string   `json:"location"`
	MaxResults int      `json:"max_results,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	State   string `json:"state"`
}

// reviewsResponse mirrors the Reviewscope API response model.
type reviewsResponse struct {
	Success bool `json:"success"`
	Reviews []struct {
		Text      string `json:"text"`
		SourceURL string `json:"source_url"`
	} `json:"reviews"`
	Summary struct {
		TotalReviews   int            `json:"total_reviews"`
		TotalSentences int            `json:"total_sentences"`
		Counts         map[string]int `json:"counts"`
	} `json:"summary"`
	Sources []struct {
		Name  string    `json:"name"`
		Count int       `json:"count"`
		Error *apiError `json:"error"`
	} `json:"sources"`
	CacheStatus string    `json:"cache_status"`
	Error       *apiError `json:"error"`
}

// emailResponse mirrors the Reviewscope email report response.
type emailResponse struct {
	Success bool      `json:"success"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Error   *apiError `json:"error"`
}

func main() {
	apiURL := os.Getenv("REVIEWSCOPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("REVIEWSCOPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "REVIEWSCOPE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"reviewscope",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	reviewsTool := mcp.NewTool("property_reviews",
		mcp.WithDescription("Collect public reviews for an apartment community or business and count mentions of security, pet waste, amenity misuse and safety issues."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Property or business name, e.g. '30 West Apartments'"),
		),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("City and state used to disambiguate the search, e.g. 'Bradenton, FL'"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of reviews to return (default: 50, max: 500)"),
		),
		mcp.WithArray("sources",
			mcp.Description("Restrict collection to these sources (e.g. 'maps', 'apartments', 'yelp'). Default: all"),
		),
	)
	s.AddTool(reviewsTool, handlePropertyReviews(apiURL, apiKey))

	reportTool := mcp.NewTool("property_report",
		mcp.WithDescription("Render a review summary for a property as Markdown or as a ready-to-send email."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Property or business name"),
		),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("City and state"),
		),
		mcp.WithString("format",
			mcp.Description("Report format: 'markdown' (default) or 'email'"),
			mcp.Enum("markdown", "email"),
		),
	)
	s.AddTool(reportTool, handlePropertyReport(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Reviewscope API and returns the
// response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func queryFrom(request mcp.CallToolRequest) (reviewsRequest, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return reviewsRequest{}, fmt.Errorf("name is required")
	}
	location, err := request.RequireString("location")
	if err != nil {
		return reviewsRequest{}, fmt.Errorf("location is required")
	}
	return reviewsRequest{
		Name:       name,
		Location:   location,
		MaxResults: request.GetInt("max_results", 0),
		Sources:    request.GetStringSlice("sources", nil),
	}, nil
}

func errorText(e *apiError, fallback string) string {
	if e == nil {
		return fallback
	}
	if e.State != "" {
		return fmt.Sprintf("[%s] %s (last state %s)", e.Code, e.Message, e.State)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func handlePropertyReviews(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 200 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := queryFrom(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/reviews", q)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reviews request failed: %v", err)), nil
		}

		var resp reviewsResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText(resp.Error, "review collection failed")), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s, %s: %d reviews, %d sentences\n\n", q.Name, q.Location,
			resp.Summary.TotalReviews, resp.Summary.TotalSentences)

		sb.WriteString("Category mentions:\n")
		for name, n := range resp.Summary.Counts {
			fmt.Fprintf(&sb, "  %s: %d\n", name, n)
		}

		sb.WriteString("\nSources:\n")
		for _, src := range resp.Sources {
			if src.Error != nil {
				fmt.Fprintf(&sb, "  %s: FAILED %s\n", src.Name, errorText(src.Error, ""))
				continue
			}
			fmt.Fprintf(&sb, "  %s: %d reviews\n", src.Name, src.Count)
		}

		sb.WriteString("\nReviews:\n")
		for i, r := range resp.Reviews {
			fmt.Fprintf(&sb, "--- [%d] %s\n%s\n\n", i+1, r.SourceURL, r.Text)
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handlePropertyReport(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 200 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := queryFrom(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		format := request.GetString("format", "markdown")

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/reviews/report?format="+format, q)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("report request failed: %v", err)), nil
		}

		if format != "email" {
			// Errors come back as JSON; reports as Markdown.
			var failed reviewsResponse
			if json.Unmarshal(respBody, &failed) == nil && failed.Error != nil {
				return mcp.NewToolResultError(errorText(failed.Error, "report failed")), nil
			}
			return mcp.NewToolResultText(string(respBody)), nil
		}

		var resp emailResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText(resp.Error, "report failed")), nil
		}
		return mcp.NewToolResultText("Subject: " + resp.Subject + "\n\n" + resp.Body), nil
	}
}
