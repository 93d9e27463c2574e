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

const rekaBaseURL = "https://api.reka.ai"

// VisionResult is the analysis of an image or video, e.g. an event
// flyer.
type VisionResult struct {
	Analysis          string   `json:"analysis"`
	ConversationHooks []string `json:"conversation_hooks,omitempty"`
}

// RekaClient analyzes media URLs through the Reka vision API.
type RekaClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewRekaClient(apiKey string) (*RekaClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("reka api key is required")
	}
	return &RekaClient{
		apiKey:  apiKey,
		baseURL: rekaBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// SetBaseURL overrides the API endpoint (for testing).
func (c *RekaClient) SetBaseURL(u string) { c.baseURL = u }

func (c *RekaClient) post(ctx context.Context, path string, body map[string]any) (*VisionResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal reka request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build reka request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reka request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("reka: status %d: %s", resp.StatusCode, data)
	}

	var out VisionResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode reka response: %w", err)
	}
	return &out, nil
}

// Analyze extracts information from a single media URL.
func (c *RekaClient) Analyze(ctx context.Context, url, prompt string) (*VisionResult, error) {
	return c.post(ctx, "/v1/vision/analyze", map[string]any{"url": url, "prompt": prompt})
}

// Compare analyzes several media URLs against one prompt.
func (c *RekaClient) Compare(ctx context.Context, urls []string, prompt string) (*VisionResult, error) {
	return c.post(ctx, "/v1/vision/compare", map[string]any{"urls": urls, "prompt": prompt})
}
