// Package clients holds the thin HTTP and driver wrappers around the
// external collaborators: Tavily search, Yutori browsing/scouting,
// Reka vision, the Neo4j knowledge graph and Google Calendar. Each
// client is optional; a missing key leaves it nil and the agent
// degrades with not-configured results.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const tavilyBaseURL = "https://api.tavily.com"

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResponse is the structured, bounded result set of one query.
type SearchResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results"`
}

// SearchOptions tune a single query.
type SearchOptions struct {
	MaxResults     int
	IncludeDomains []string
	TimeRange      string
	SearchDepth    string
}

// TavilyClient searches the web through the Tavily REST API.
type TavilyClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewTavilyClient(apiKey string) (*TavilyClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tavily api key is required")
	}
	return &TavilyClient{
		apiKey:  apiKey,
		baseURL: tavilyBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetBaseURL overrides the API endpoint (for testing).
func (c *TavilyClient) SetBaseURL(u string) { c.baseURL = u }

func (c *TavilyClient) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	depth := opts.SearchDepth
	if depth == "" {
		depth = "advanced"
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	body := map[string]any{
		"api_key":      c.apiKey,
		"query":        query,
		"search_depth": depth,
		"max_results":  maxResults,
	}
	if len(opts.IncludeDomains) > 0 {
		body["include_domains"] = opts.IncludeDomains
	}
	if opts.TimeRange != "" {
		body["time_range"] = opts.TimeRange
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily search: status %d: %s", resp.StatusCode, data)
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}
