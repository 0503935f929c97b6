// Command loadtest drives GET /api/v1/search with a mix of queries and
// search types and reports latency percentiles, cache hits and degraded
// responses.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var defaultQueries = []string{
	"quarterly budget report",
	"finance review",
	"meeting tomorrow with design team",
	"travel plan for berlin",
	"project roadmap",
	"todo list for launch",
	"shared notes from standup",
	"invoice spreadsheet",
	"hiring plan",
	"customer feedback summary",
	"weekly schedule",
	"onboarding checklist",
}

type runConfig struct {
	baseURL     string
	token       string
	concurrency int
	duration    time.Duration
	queries     []string
	searchTypes []string
}

// searchBody is the subset of the search response the report needs.
type searchBody struct {
	Metadata struct {
		Cached   bool     `json:"cached"`
		Degraded []string `json:"degraded"`
	} `json:"metadata"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	token := flag.String("token", "", "bearer token to send (see searchctl token)")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	types := flag.String("types", "hybrid,text,semantic", "comma-separated search types to rotate through")
	flag.Parse()

	cfg := runConfig{
		baseURL:     strings.TrimRight(*baseURL, "/"),
		token:       *token,
		concurrency: max(*concurrency, 1),
		duration:    *duration,
		queries:     defaultQueries,
		searchTypes: strings.Split(*types, ","),
	}

	fmt.Println("=== Hybrid Search Load Test ===")
	fmt.Printf("Target:       %s\n", cfg.baseURL)
	fmt.Printf("Concurrency:  %d\n", cfg.concurrency)
	fmt.Printf("Duration:     %s\n", cfg.duration)
	fmt.Printf("Queries:      %d unique\n", len(cfg.queries))
	fmt.Printf("Search types: %s\n", strings.Join(cfg.searchTypes, ", "))
	fmt.Println()

	stats := run(cfg)
	report(os.Stdout, stats, cfg.duration)
	if stats.snapshot().total == 0 {
		fmt.Println()
		fmt.Println("WARNING: no requests completed. Is the search service running?")
		os.Exit(1)
	}
}

func run(cfg runConfig) *stats {
	st := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				target := searchURL(cfg, i)
				start := time.Now()
				status, body, err := doSearch(ctx, client, target, cfg.token)
				if ctx.Err() != nil {
					return nil
				}
				st.record(time.Since(start), status, body, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return st
}

func searchURL(cfg runConfig, i int) string {
	v := url.Values{}
	v.Set("q", cfg.queries[i%len(cfg.queries)])
	v.Set("searchType", cfg.searchTypes[i%len(cfg.searchTypes)])
	v.Set("maxResults", "10")
	return cfg.baseURL + "/api/v1/search?" + v.Encode()
}

func doSearch(ctx context.Context, client *http.Client, target, token string) (int, *searchBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}
	var body searchBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, &body, nil
}
