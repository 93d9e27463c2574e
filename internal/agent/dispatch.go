package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/wingmanhq/wingman/internal/bus"
	"github.com/wingmanhq/wingman/internal/clients"
	"github.com/wingmanhq/wingman/internal/prefs"
	"github.com/wingmanhq/wingman/internal/tools"
)

// Collaborator seams, narrowed to what the tools actually call so
// tests can fake them.

type Searcher interface {
	Search(ctx context.Context, query string, opts clients.SearchOptions) (*clients.SearchResponse, error)
}

type Browser interface {
	BrowsingCreate(ctx context.Context, task, startURL string) (*clients.BrowseTask, error)
	ScoutingCreate(ctx context.Context, task, startURL, schedule string) (*clients.BrowseTask, error)
}

type Vision interface {
	Analyze(ctx context.Context, url, prompt string) (*clients.VisionResult, error)
	Compare(ctx context.Context, urls []string, prompt string) (*clients.VisionResult, error)
}

type Graph interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

type Calendar interface {
	CheckBusy(ctx context.Context, start, end time.Time) (bool, error)
	CreateEvent(ctx context.Context, summary string, start, end time.Time) (string, error)
	Upcoming(ctx context.Context, n int64) ([]map[string]any, error)
}

// FeedbackSource hands pending user feedback to the loop. Drained
// entries are consumed; they will not appear again.
type FeedbackSource interface {
	DrainFeedback() ([]prefs.Feedback, error)
}

const searchContentLimit = 500

// dispatch routes one vetted tool call. Not-configured clients come
// back as an error result rather than a Go error so the model sees a
// plain result block, matching what a missing API key produces.
func (a *Agent) dispatch(ctx context.Context, name tools.Name, input []byte) (map[string]any, error) {
	switch name {
	case tools.Search:
		return a.execSearch(ctx, input)
	case tools.Browse:
		return a.execBrowse(ctx, input)
	case tools.Scout:
		return a.execScout(ctx, input)
	case tools.Vision:
		return a.execVision(ctx, input)
	case tools.GraphQuery:
		return a.execGraphQuery(ctx, input)
	case tools.GraphWrite:
		return a.execGraphWrite(ctx, input)
	case tools.Calendar:
		return a.execCalendar(ctx, input)
	case tools.ResolveIdentity:
		return a.execResolveIdentity(ctx, input)
	case tools.DraftMessage:
		return a.execDraftMessage(ctx, input)
	case tools.PollFeedback:
		return a.execPollFeedback()
	case tools.Notify:
		return a.execNotify(input)
	case tools.Wait:
		return a.execWait(input)
	default:
		return map[string]any{"error": fmt.Sprintf("Unknown tool: %s", name)}, nil
	}
}

func (a *Agent) execSearch(ctx context.Context, input []byte) (map[string]any, error) {
	if a.deps.Search == nil {
		return map[string]any{"error": "Tavily client not configured"}, nil
	}
	var in struct {
		Query          string   `json:"query"`
		MaxResults     int      `json:"max_results"`
		IncludeDomains []string `json:"include_domains"`
		TimeRange      string   `json:"time_range"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse search input: %w", err)
	}

	resp, err := a.deps.Search.Search(ctx, in.Query, clients.SearchOptions{
		MaxResults:     in.MaxResults,
		IncludeDomains: in.IncludeDomains,
		TimeRange:      in.TimeRange,
	})
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"content": truncate(r.Content, searchContentLimit),
		})
	}
	return map[string]any{
		"query":   resp.Query,
		"answer":  resp.Answer,
		"results": results,
	}, nil
}

func (a *Agent) execBrowse(ctx context.Context, input []byte) (map[string]any, error) {
	if a.deps.Browser == nil {
		return map[string]any{"error": "Yutori client not configured"}, nil
	}
	var in struct {
		Task     string `json:"task"`
		StartURL string `json:"start_url"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse browse input: %w", err)
	}

	task, err := a.deps.Browser.BrowsingCreate(ctx, in.Task, in.StartURL)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"task_id": task.TaskID,
		"status":  task.Status,
		"result":  task.Result,
	}, nil
}

func (a *Agent) execScout(ctx context.Context, input []byte) (map[string]any, error) {
	if a.deps.Browser == nil {
		return map[string]any{"error": "Yutori client not configured"}, nil
	}
	var in struct {
		Task     string `json:"task"`
		StartURL string `json:"start_url"`
		Schedule string `json:"schedule"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse scout input: %w", err)
	}
	if in.Schedule == "" {
		in.Schedule = "daily"
	}

	task, err := a.deps.Browser.ScoutingCreate(ctx, in.Task, in.StartURL, in.Schedule)
	if err != nil {
		return nil, err
	}
	return map[string]any{"task_id": task.TaskID, "status": task.Status}, nil
}

func (a *Agent) execVision(ctx context.Context, input []byte) (map[string]any, error) {
	if a.deps.Vision == nil {
		return map[string]any{"error": "Reka client not configured"}, nil
	}
	var in struct {
		URL         string   `json:"url"`
		Prompt      string   `json:"prompt"`
		CompareURLs []string `json:"compare_urls"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse vision input: %w", err)
	}

	var (
		res *clients.VisionResult
		err error
	)
	if len(in.CompareURLs) > 0 {
		res, err = a.deps.Vision.Compare(ctx, in.CompareURLs, in.Prompt)
	} else {
		res, err = a.deps.Vision.Analyze(ctx, in.URL, in.Prompt)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"analysis":           res.Analysis,
		"conversation_hooks": res.ConversationHooks,
	}, nil
}

func (a *Agent) execGraphQuery(ctx context.Context, input []byte) (map[string]any, error) {
	if a.deps.Graph == nil {
		return map[string]any{"error": "Neo4j client not configured"}, nil
	}
	var in struct {
		Cypher string         `json:"cypher"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse graph query input: %w", err)
	}

	records, err := a.deps.Graph.Query(ctx, in.Cypher, in.Params)
	if err != nil {
		return nil, err
	}
	return map[string]any{"records": records, "count": len(records)}, nil
}

func (a *Agent) execGraphWrite(ctx context.Context, input []byte) (map[string]any, error) {
	if a.deps.Graph == nil {
		return map[string]any{"error": "Neo4j client not configured"}, nil
	}
	var in struct {
		Cypher string         `json:"cypher"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse graph write input: %w", err)
	}

	records, err := a.deps.Graph.Write(ctx, in.Cypher, in.Params)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "written", "affected": len(records)}, nil
}

func (a *Agent) execCalendar(ctx context.Context, input []byte) (map[string]any, error) {
	if a.deps.Calendar == nil {
		return map[string]any{"error": "Calendar client not configured"}, nil
	}
	var in struct {
		Action     string `json:"action"`
		StartTime  string `json:"start_time"`
		EndTime    string `json:"end_time"`
		Summary    string `json:"summary"`
		MaxResults int64  `json:"max_results"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse calendar input: %w", err)
	}

	switch in.Action {
	case "check_busy":
		start, end, err := parseTimeRange(in.StartTime, in.EndTime)
		if err != nil {
			return nil, err
		}
		busy, err := a.deps.Calendar.CheckBusy(ctx, start, end)
		if err != nil {
			return nil, err
		}
		return map[string]any{"busy": busy, "start": in.StartTime, "end": in.EndTime}, nil

	case "create_event":
		start, end, err := parseTimeRange(in.StartTime, in.EndTime)
		if err != nil {
			return nil, err
		}
		id, err := a.deps.Calendar.CreateEvent(ctx, in.Summary, start, end)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "scheduled", "event_id": id}, nil

	case "list_upcoming":
		events, err := a.deps.Calendar.Upcoming(ctx, in.MaxResults)
		if err != nil {
			return nil, err
		}
		return map[string]any{"events": events, "count": len(events)}, nil

	default:
		return map[string]any{"error": fmt.Sprintf("Unknown calendar action: %s", in.Action)}, nil
	}
}

// execResolveIdentity finds a person's social accounts with scoped
// web searches over linkedin.com and x.com.
func (a *Agent) execResolveIdentity(ctx context.Context, input []byte) (map[string]any, error) {
	if a.deps.Search == nil {
		return map[string]any{"error": "Tavily client not configured"}, nil
	}
	var in struct {
		Name    string `json:"name"`
		Company string `json:"company"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse resolve input: %w", err)
	}

	query := in.Name
	if in.Company != "" {
		query += " " + in.Company
	}
	if in.Title != "" {
		query += " " + in.Title
	}

	links := map[string]any{}
	lookups := []struct {
		key    string
		domain string
	}{
		{"linkedin", "linkedin.com"},
		{"twitter", "x.com"},
	}
	for _, l := range lookups {
		resp, err := a.deps.Search.Search(ctx, query, clients.SearchOptions{
			MaxResults:     3,
			IncludeDomains: []string{l.domain},
		})
		if err != nil {
			continue
		}
		if len(resp.Results) > 0 {
			links[l.key] = resp.Results[0].URL
		}
	}

	return map[string]any{"name": in.Name, "social_links": links}, nil
}

// execDraftMessage composes an outreach draft with a dedicated model
// call. Drafts are never sent; the user reviews them via notify.
func (a *Agent) execDraftMessage(ctx context.Context, input []byte) (map[string]any, error) {
	var in struct {
		Recipient   string `json:"recipient"`
		MessageType string `json:"message_type"`
		Channel     string `json:"channel"`
		Context     string `json:"context"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse draft input: %w", err)
	}

	prompt := fmt.Sprintf(
		"Draft a %s %s message on %s from %s (%s at %s) to %s.\nContext: %s\n"+
			"Keep it short and specific. Reply with the message text only.",
		a.profile.Tone(), in.MessageType, in.Channel,
		a.profile.Name, a.profile.Role, a.profile.Company,
		in.Recipient, in.Context)

	resp, err := a.model.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.modelName),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("draft message: %w", err)
	}

	var draft string
	for _, block := range resp.Content {
		if block.Type == "text" {
			draft += block.Text
		}
	}

	return map[string]any{
		"status":       "drafted",
		"message_type": in.MessageType,
		"channel":      in.Channel,
		"recipient":    in.Recipient,
		"draft":        draft,
	}, nil
}

func (a *Agent) execPollFeedback() (map[string]any, error) {
	if a.deps.Feedback == nil {
		return map[string]any{"feedback": []prefs.Feedback{}, "count": 0}, nil
	}
	items, err := a.deps.Feedback.DrainFeedback()
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []prefs.Feedback{}
	}
	return map[string]any{"feedback": items, "count": len(items)}, nil
}

func (a *Agent) execNotify(input []byte) (map[string]any, error) {
	if a.deps.Bus == nil {
		return map[string]any{"error": "Notification bus not configured"}, nil
	}
	var in struct {
		Type     string         `json:"type"`
		Title    string         `json:"title"`
		Message  string         `json:"message"`
		Priority string         `json:"priority"`
		Data     map[string]any `json:"data"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse notify input: %w", err)
	}
	if in.Type == "" {
		in.Type = bus.TypeStatusUpdate
	}
	if in.Priority == "" {
		in.Priority = bus.PriorityNormal
	}

	if !a.deps.Bus.Publish(bus.Notification{
		Type:     in.Type,
		Priority: in.Priority,
		Title:    in.Title,
		Body:     in.Message,
		Data:     in.Data,
	}) {
		return nil, fmt.Errorf("notification dropped, outbound buffer full")
	}
	return map[string]any{"status": "notified", "type": in.Type, "priority": in.Priority}, nil
}

// execWait only reports the wait; the loop does the actual sleeping
// so it stays abortable.
func (a *Agent) execWait(input []byte) (map[string]any, error) {
	var in struct {
		Hours float64 `json:"hours"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse wait input: %w", err)
	}
	if in.Hours <= 0 {
		in.Hours = 1
	}
	return map[string]any{"status": "waited", "hours": in.Hours}, nil
}

func parseTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start_time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end_time: %w", err)
	}
	return start, end, nil
}
