package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL  = flag.String("api-url", "http://localhost:8080", "Reviewscope API base URL")
	apiKey  = flag.String("api-key", "", "API key for authenticated requests")
	runs    = flag.Int("runs", 3, "Number of runs per property for averaging")
	maxRes  = flag.Int("max-results", 50, "max_results sent with every query")
	srcList = flag.String("sources", "", "Comma-separated source names; empty means all")
	output  = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Properties covering small, mid-size and large review counts.
var testProperties = []struct {
	Name     string
	Location string
}{
	{"30 West Apartments", "Bradenton, FL"},
	{"The Vue at Lake Eola", "Orlando, FL"},
	{"Camden Roosevelt", "Washington, DC"},
}

// --- Request / Response types (mirrors models package) ---

type reviewsRequest struct {
	Name       string   `json:"name"`
	Location   string   `json:"location"`
	MaxResults int      `json:"max_results"`
	Sources    []string `json:"sources,omitempty"`
}

type reviewsResponse struct {
	Success     bool           `json:"success"`
	Reviews     []review       `json:"reviews"`
	Sources     []sourceStatus `json:"sources"`
	CacheStatus string         `json:"cache_status"`
	Timing      timingInfo     `json:"timing"`
	Error       *errorDetail   `json:"error,omitempty"`
}

type review struct {
	Text string `json:"text"`
}

type sourceStatus struct {
	Name  string       `json:"name"`
	Count int          `json:"count"`
	Error *errorDetail `json:"error,omitempty"`
}

type timingInfo struct {
	TotalMs      int64 `json:"total_ms"`
	CollectionMs int64 `json:"collection_ms"`
	AnalysisMs   int64 `json:"analysis_ms"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type runResult struct {
	Run           int            `json:"run"`
	TotalMs       int64          `json:"total_ms"`
	CollectionMs  int64          `json:"collection_ms"`
	AnalysisMs    int64          `json:"analysis_ms"`
	Reviews       int            `json:"reviews"`
	SourceCounts  map[string]int `json:"source_counts"`
	FailedSources []string       `json:"failed_sources,omitempty"`
	CacheHit      bool           `json:"cache_hit"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
}

type propertyAverages struct {
	TotalMs      float64 `json:"total_ms"`
	CollectionMs float64 `json:"collection_ms"`
	Reviews      float64 `json:"reviews"`
}

type propertyResult struct {
	Name     string            `json:"name"`
	Location string            `json:"location"`
	Runs     []runResult       `json:"runs"`
	Averages *propertyAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp       string           `json:"timestamp"`
	APIURL          string           `json:"api_url"`
	RunsPerProperty int              `json:"runs_per_property"`
	Results         []propertyResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Reviewscope Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs:      %d per property\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		APIURL:          *apiURL,
		RunsPerProperty: *runs,
	}

	var only []string
	for _, s := range strings.Split(*srcList, ",") {
		if s = strings.TrimSpace(s); s != "" {
			only = append(only, s)
		}
	}

	for _, p := range testProperties {
		fmt.Printf("Benchmarking %s, %s ...\n", p.Name, p.Location)
		pr := propertyResult{Name: p.Name, Location: p.Location}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkProperty(reviewsRequest{
				Name:       p.Name,
				Location:   p.Location,
				MaxResults: *maxRes,
				Sources:    only,
			}, i)
			switch {
			case !rr.Success:
				fmt.Printf("FAILED: %s\n", rr.Error)
			case rr.CacheHit:
				fmt.Printf("OK  %dms  %d reviews (cached)\n", rr.TotalMs, rr.Reviews)
			default:
				fmt.Printf("OK  %dms  %d reviews\n", rr.TotalMs, rr.Reviews)
			}
			pr.Runs = append(pr.Runs, rr)
		}

		pr.Averages = computeAverages(pr.Runs)
		report.Results = append(report.Results, pr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkProperty(q reviewsRequest, run int) runResult {
	rr := runResult{Run: run, SourceCounts: map[string]int{}}

	bodyBytes, err := json.Marshal(q)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/reviews", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 200 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var sr reviewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = sr.Success
	rr.TotalMs = sr.Timing.TotalMs
	rr.CollectionMs = sr.Timing.CollectionMs
	rr.AnalysisMs = sr.Timing.AnalysisMs
	rr.Reviews = len(sr.Reviews)
	rr.CacheHit = sr.CacheStatus == "hit"
	for _, s := range sr.Sources {
		rr.SourceCounts[s.Name] = s.Count
		if s.Error != nil {
			rr.FailedSources = append(rr.FailedSources, s.Name+":"+s.Error.Code)
		}
	}

	if sr.Error != nil {
		rr.Error = sr.Error.Code + ": " + sr.Error.Message
	}

	return rr
}

// computeAverages ignores failed and cached runs.
func computeAverages(runs []runResult) *propertyAverages {
	var n int
	var avg propertyAverages

	for _, r := range runs {
		if !r.Success || r.CacheHit {
			continue
		}
		n++
		avg.TotalMs += float64(r.TotalMs)
		avg.CollectionMs += float64(r.CollectionMs)
		avg.Reviews += float64(r.Reviews)
	}

	if n == 0 {
		return nil
	}

	avg.TotalMs /= float64(n)
	avg.CollectionMs /= float64(n)
	avg.Reviews /= float64(n)
	return &avg
}

func printTable(results []propertyResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Property\tAvg Latency\tAvg Reviews\tFailed Sources\n")
	fmt.Fprintf(w, "────────\t───────────\t───────────\t──────────────\n")

	for _, r := range results {
		label := truncate(r.Name+", "+r.Location, 40)
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\n", label)
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%.1f\t%s\n",
			label,
			int64(r.Averages.TotalMs),
			r.Averages.Reviews,
			failedSummary(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

// failedSummary counts how often each source failed across runs.
func failedSummary(runs []runResult) string {
	counts := map[string]int{}
	var order []string
	for _, r := range runs {
		for _, f := range r.FailedSources {
			if counts[f] == 0 {
				order = append(order, f)
			}
			counts[f]++
		}
	}
	if len(order) == 0 {
		return "-"
	}
	parts := make([]string, len(order))
	for i, f := range order {
		parts[i] = fmt.Sprintf("%s x%d", f, counts[f])
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
