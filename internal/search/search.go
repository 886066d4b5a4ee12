// Package search queries a SearXNG instance for web results and optionally
// enriches the top hits with readable page text. It is the evidence source
// behind the search responder.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/log"
)

const maxSearchBodySize = 512 * 1024 // 512KB

// Result is a single web search hit. Snippet is plain text with any markup
// stripped.
type Result struct {
	Title   string
	URL     string
	Snippet string
	Page    string // readable page text when fetching is enabled
}

// searxngResponse models the relevant portion of the SearXNG JSON response.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
}

// Client searches the web via a SearXNG instance.
//
// Client is safe for concurrent use.
type Client struct {
	http       *http.Client
	baseURL    string
	maxResults int
	fetcher    *Fetcher
	logger     log.Logger
}

// NewClient creates a search client. fetcher may be nil to disable page
// enrichment.
func NewClient(cfg config.SearXNGConfig, fetcher *Fetcher, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		http:       &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxResults: cfg.MaxResults,
		fetcher:    fetcher,
		logger:     logger,
	}
}

// Search queries SearXNG and returns at most the configured number of
// results. When a fetcher is configured, the top results carry readable
// page text in addition to the engine snippet.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed (HTTP %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var searxResp searxngResponse
	if err := json.Unmarshal(body, &searxResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, c.maxResults)
	for _, r := range searxResp.Results {
		if len(results) >= c.maxResults {
			break
		}
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: StripTags(r.Content),
		})
	}

	if c.fetcher != nil {
		c.fetcher.Enrich(ctx, results)
	}

	c.logger.Debug("web search completed", "query", query, "results", len(results))
	return results, nil
}

// FormatResults renders results as a numbered evidence block suitable for
// inclusion in a model prompt. Returns the empty string for no results.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			b.WriteString(r.Snippet)
			b.WriteString("\n")
		}
		if r.Page != "" {
			b.WriteString(truncate(r.Page, 2000))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
