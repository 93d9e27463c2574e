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

const yutoriBaseURL = "https://api.yutori.com"

// BrowseTask is the state of one Yutori browsing or scouting task.
type BrowseTask struct {
	TaskID string         `json:"task_id"`
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
}

// YutoriClient drives browser automation (one-shot browsing tasks)
// and scouts (recurring site monitors).
type YutoriClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewYutoriClient(apiKey string) (*YutoriClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("yutori api key is required")
	}
	return &YutoriClient{
		apiKey:  apiKey,
		baseURL: yutoriBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetBaseURL overrides the API endpoint (for testing).
func (c *YutoriClient) SetBaseURL(u string) { c.baseURL = u }

func (c *YutoriClient) post(ctx context.Context, path string, body map[string]any) (*BrowseTask, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal yutori request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build yutori request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	return c.do(req)
}

func (c *YutoriClient) get(ctx context.Context, path string) (*BrowseTask, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build yutori request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	return c.do(req)
}

func (c *YutoriClient) do(req *http.Request) (*BrowseTask, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yutori request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("yutori: status %d: %s", resp.StatusCode, data)
	}

	var task BrowseTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode yutori response: %w", err)
	}
	return &task, nil
}

// BrowsingCreate starts a browsing automation task.
func (c *YutoriClient) BrowsingCreate(ctx context.Context, task, startURL string) (*BrowseTask, error) {
	body := map[string]any{"task": task, "max_steps": 50}
	if startURL != "" {
		body["start_url"] = startURL
	}
	return c.post(ctx, "/v1/browsing/tasks", body)
}

// BrowsingGet fetches the status of a browsing task.
func (c *YutoriClient) BrowsingGet(ctx context.Context, taskID string) (*BrowseTask, error) {
	return c.get(ctx, "/v1/browsing/tasks/"+taskID)
}

// ScoutingCreate sets up a recurring monitor.
func (c *YutoriClient) ScoutingCreate(ctx context.Context, task, startURL, schedule string) (*BrowseTask, error) {
	body := map[string]any{"task": task}
	if startURL != "" {
		body["start_url"] = startURL
	}
	if schedule != "" {
		body["schedule"] = schedule
	}
	return c.post(ctx, "/v1/scouting/tasks", body)
}

// ScoutingGet fetches the latest results of a scout.
func (c *YutoriClient) ScoutingGet(ctx context.Context, scoutID string) (*BrowseTask, error) {
	return c.get(ctx, "/v1/scouting/tasks/"+scoutID)
}

// CreateTask implements the policy executor's browser contract.
func (c *YutoriClient) CreateTask(ctx context.Context, task, startURL string) (string, error) {
	bt, err := c.BrowsingCreate(ctx, task, startURL)
	if err != nil {
		return "", err
	}
	return bt.TaskID, nil
}
