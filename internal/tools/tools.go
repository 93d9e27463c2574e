// Package tools defines the closed set of tools the agent can invoke
// and the catalog handed to the reasoning model. Tool identity is a
// typed constant so dispatch can switch exhaustively; adding a tool
// means adding a constant, a catalog entry, and a dispatch case.
package tools

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// Name identifies a tool in the catalog.
type Name string

const (
	Search          Name = "web_search"
	Browse          Name = "yutori_browse"
	Scout           Name = "yutori_scout"
	Vision          Name = "reka_vision"
	GraphQuery      Name = "graph_query"
	GraphWrite      Name = "graph_write"
	Calendar        Name = "google_calendar"
	ResolveIdentity Name = "resolve_identity"
	DraftMessage    Name = "draft_message"
	PollFeedback    Name = "poll_feedback"
	Notify          Name = "notify_user"
	Wait            Name = "wait"
)

// All lists every tool in catalog order.
func All() []Name {
	return []Name{
		Search, Browse, Scout, Vision, GraphQuery, GraphWrite,
		Calendar, ResolveIdentity, DraftMessage, PollFeedback,
		Notify, Wait,
	}
}

// Parse maps a model-supplied tool name onto a known tool.
func Parse(s string) (Name, bool) {
	for _, n := range All() {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// SideEffecting reports whether the tool acts on the outside world.
// These are the tools the safety gate blocks in dry_run and replay.
func (n Name) SideEffecting() bool {
	switch n {
	case Browse, Scout, Calendar, Notify:
		return true
	}
	return false
}

func schema(props map[string]any) anthropic.ToolInputSchemaParam {
	return anthropic.ToolInputSchemaParam{
		Type:       "object",
		Properties: props,
	}
}

func tool(name Name, desc string, props map[string]any) anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        string(name),
			Description: anthropic.String(desc),
			InputSchema: schema(props),
		},
	}
}

// Catalog returns the fixed tool schemas submitted with every model call.
func Catalog() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		tool(Search, "Search the web for events and people. Returns structured results with titles, URLs and snippets.",
			map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
			}),
		tool(Browse, "Run a browser automation task, e.g. filling out an event application form.",
			map[string]any{
				"task":      map[string]any{"type": "string", "description": "Natural language description of the browsing task"},
				"start_url": map[string]any{"type": "string", "description": "URL to start from"},
			}),
		tool(Scout, "Set up a recurring monitor that watches a site for new matching items.",
			map[string]any{
				"task":      map[string]any{"type": "string", "description": "What to watch for"},
				"start_url": map[string]any{"type": "string", "description": "Site to monitor"},
			}),
		tool(Vision, "Analyze an image or video at a URL, e.g. an event flyer.",
			map[string]any{
				"url":    map[string]any{"type": "string", "description": "Media URL"},
				"prompt": map[string]any{"type": "string", "description": "What to extract from the media"},
			}),
		tool(GraphQuery, "Run a read-only Cypher query against the knowledge graph.",
			map[string]any{
				"cypher": map[string]any{"type": "string", "description": "Cypher statement"},
			}),
		tool(GraphWrite, "Run a write Cypher statement against the knowledge graph. Use MERGE for idempotency.",
			map[string]any{
				"cypher": map[string]any{"type": "string", "description": "Cypher statement"},
			}),
		tool(Calendar, "Check availability or create calendar events.",
			map[string]any{
				"action":     map[string]any{"type": "string", "description": "One of check_busy, create_event, list_upcoming"},
				"start_time": map[string]any{"type": "string", "description": "RFC3339 start time"},
				"end_time":   map[string]any{"type": "string", "description": "RFC3339 end time"},
				"summary":    map[string]any{"type": "string", "description": "Event title for create_event"},
			}),
		tool(ResolveIdentity, "Resolve a person's name into graph, web and social context.",
			map[string]any{
				"name":    map[string]any{"type": "string", "description": "Person's name"},
				"company": map[string]any{"type": "string", "description": "Company hint"},
			}),
		tool(DraftMessage, "Draft an outreach message for a recipient. Does not send anything.",
			map[string]any{
				"recipient":    map[string]any{"type": "string", "description": "Who the message is for"},
				"message_type": map[string]any{"type": "string", "description": "intro, follow_up or application_answer"},
				"channel":      map[string]any{"type": "string", "description": "email, twitter_dm or linkedin"},
				"context":      map[string]any{"type": "string", "description": "What to mention"},
			}),
		tool(PollFeedback, "Fetch pending user feedback on suggestions and drafts.",
			map[string]any{}),
		tool(Notify, "Send the user a notification through the configured channel.",
			map[string]any{
				"type": map[string]any{"type": "string", "description": "Notification type, e.g. event_suggestion, application_submitted, draft_review"},
				"data": map[string]any{"type": "object", "description": "Notification payload"},
			}),
		tool(Wait, "Pause the loop for a number of hours before the next cycle.",
			map[string]any{
				"hours": map[string]any{"type": "number", "description": "Hours to wait"},
			}),
	}
}
