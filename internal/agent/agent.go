// Package agent is the decision core: a ReAct loop where the
// reasoning model picks tools, the safety gate vets them, and results
// feed back into a bounded conversation.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wingmanhq/wingman/internal/bus"
	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/profile"
	"github.com/wingmanhq/wingman/internal/safety"
	"github.com/wingmanhq/wingman/internal/tools"
)

// History bounds: past maxHistory entries, keep the first
// keepPrefix and the last keepSuffix.
const (
	maxHistory = 100
	keepPrefix = 2
	keepSuffix = 50
)

// ModelClient is the reasoning model call, narrowed for test fakes.
type ModelClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type anthropicModel struct {
	client anthropic.Client
}

func (m *anthropicModel) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return m.client.Messages.New(ctx, params)
}

// NewModelClient builds the real Anthropic-backed model client.
func NewModelClient(apiKey string) ModelClient {
	return &anthropicModel{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Deps are the external collaborators. Any of them may be nil; the
// corresponding tool then returns a not-configured result instead of
// failing the loop.
type Deps struct {
	Search   Searcher
	Browser  Browser
	Vision   Vision
	Graph    Graph
	Calendar Calendar
	Feedback FeedbackSource
	Bus      *bus.Bus
}

// Agent owns the conversation and the loop state. All mutation goes
// through a.mu since the loop goroutine and control calls race.
type Agent struct {
	profile *profile.Profile
	mode    config.Mode
	gate    *safety.Gate
	model   ModelClient
	deps    Deps

	modelName string
	maxTokens int64

	mu           sync.Mutex
	conversation []anthropic.MessageParam
	running      bool
	loopActive   bool

	// Sleep slicing, overridable in tests.
	waitSlice      time.Duration
	recoverySlice  time.Duration
	recoverySleeps int
	now            func() time.Time
}

func New(p *profile.Profile, cfg *config.Config, gate *safety.Gate, model ModelClient, deps Deps) *Agent {
	modelName := cfg.Agent.Model
	if modelName == "" {
		modelName = config.DefaultModel
	}
	maxTokens := int64(cfg.Agent.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = config.DefaultMaxTokens
	}

	return &Agent{
		profile:        p,
		mode:           cfg.Mode(),
		gate:           gate,
		model:          model,
		deps:           deps,
		modelName:      modelName,
		maxTokens:      maxTokens,
		waitSlice:      10 * time.Second,
		recoverySlice:  time.Second,
		recoverySleeps: 60,
		now:            time.Now,
	}
}

// Running reports whether the loop should keep cycling.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Pause flips running off. The loop exits after its current step; a
// tool call already dispatched is allowed to finish.
func (a *Agent) Pause() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	log.Printf("[agent] pause requested")
}

// Resume flips running on and starts a loop goroutine if none is
// active. An existing conversation continues where it left off; the
// kickoff prompt is never replayed.
func (a *Agent) Resume(ctx context.Context) {
	a.mu.Lock()
	a.running = true
	active := a.loopActive
	if !active {
		a.loopActive = true
	}
	a.mu.Unlock()

	if !active {
		go a.Loop(ctx)
	}
}

// Loop is the main cycle. It only returns when running flips off or
// the context is cancelled; model failures recover with an abortable
// backoff, never a crash.
func (a *Agent) Loop(ctx context.Context) {
	a.mu.Lock()
	a.running = true
	a.loopActive = true
	if len(a.conversation) == 0 {
		a.conversation = append(a.conversation, anthropic.NewUserMessage(
			anthropic.NewTextBlock(fmt.Sprintf(
				"You just started. Current time: %s. Begin your autonomous cycle. "+
					"Check for any pending feedback, then search for new events in SF. "+
					"Think step by step about what to do.",
				a.now().UTC().Format(time.RFC3339)))))
	}
	a.mu.Unlock()

	log.Printf("[agent] started for %s (mode=%s, tools=%d)", a.profile.Name, a.mode, len(tools.All()))

	for {
		// The exit check and the loopActive handoff are one critical
		// section, so a concurrent Resume either sees the loop still
		// active or sees it fully retired and starts a fresh one.
		a.mu.Lock()
		if ctx.Err() != nil || !a.running {
			a.loopActive = false
			a.mu.Unlock()
			log.Printf("[agent] loop stopped")
			return
		}
		a.mu.Unlock()

		a.mu.Lock()
		messages := make([]anthropic.MessageParam, len(a.conversation))
		copy(messages, a.conversation)
		a.mu.Unlock()

		resp, err := a.model.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.modelName),
			MaxTokens: a.maxTokens,
			System: []anthropic.TextBlockParam{
				{Type: "text", Text: a.buildSystemPrompt()},
			},
			Messages: messages,
			Tools:    tools.Catalog(),
		})
		if err != nil {
			log.Printf("[agent] model error: %v, recovering", err)
			a.recoverySleep(ctx)
			continue
		}

		a.appendMessage(resp.ToParam())

		switch resp.StopReason {
		case anthropic.StopReasonToolUse:
			a.handleToolUse(ctx, resp)
		default:
			for _, block := range resp.Content {
				if block.Type == "text" {
					log.Printf("[agent] thinking: %s", truncate(block.Text, 200))
				}
			}
			a.appendMessage(anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(
				"Current time: %s. Continue your autonomous cycle. What should you do next?",
				a.now().UTC().Format(time.RFC3339)))))
		}

		a.trimHistory()
	}
}

// handleToolUse executes every requested tool in order and appends
// one user message with all the results. Running is re-checked
// between calls so a pause takes effect mid-batch.
func (a *Agent) handleToolUse(ctx context.Context, resp *anthropic.Message) {
	var results []anthropic.ContentBlockParamUnion

	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		if !a.Running() {
			results = append(results, anthropic.NewToolResultBlock(
				block.ID, `{"status":"skipped","reason":"agent pausing"}`, false))
			continue
		}

		log.Printf("[agent] using tool: %s", block.Name)
		result, isErr := a.executeTool(ctx, block.Name, []byte(block.Input))
		results = append(results, anthropic.NewToolResultBlock(block.ID, result, isErr))

		if name, ok := tools.Parse(block.Name); ok && name == tools.Wait {
			a.waitFor(ctx, []byte(block.Input))
		}
	}

	if len(results) > 0 {
		a.appendMessage(anthropic.NewUserMessage(results...))
	}
}

// executeTool vets a call through the gate, dispatches it, and
// renders the result as JSON for the model. The second return marks
// the result as an error block.
func (a *Agent) executeTool(ctx context.Context, rawName string, input []byte) (string, bool) {
	name, ok := tools.Parse(rawName)
	if !ok {
		return marshalResult(map[string]any{"error": fmt.Sprintf("Unknown tool: %s", rawName)}), true
	}

	if v := a.gate.Permit(name); !v.Allowed {
		log.Printf("[agent] blocked %s: %s", name, v.Reason)
		return marshalResult(map[string]any{"status": "blocked", "reason": v.Reason}), false
	}

	result, err := a.dispatch(ctx, name, input)
	if err != nil {
		log.Printf("[agent] tool %s failed: %v", name, err)
		return marshalResult(map[string]any{"error": err.Error(), "tool": string(name)}), true
	}

	// Quota counters move only after a successful dispatch.
	switch name {
	case tools.Browse:
		a.gate.RecordApply()
	case tools.Notify:
		a.gate.RecordMessage()
	}

	return marshalResult(result), false
}

// waitFor sleeps the requested hours in short slices so a pause or
// cancellation aborts the wait with low latency.
func (a *Agent) waitFor(ctx context.Context, input []byte) {
	var in struct {
		Hours  float64 `json:"hours"`
		Reason string  `json:"reason"`
	}
	if err := json.Unmarshal(input, &in); err != nil || in.Hours <= 0 {
		in.Hours = 1
	}
	log.Printf("[agent] waiting %.1fh: %s", in.Hours, in.Reason)

	remaining := time.Duration(in.Hours * float64(time.Hour))
	for remaining > 0 {
		if ctx.Err() != nil || !a.Running() {
			return
		}
		slice := a.waitSlice
		if slice > remaining {
			slice = remaining
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(slice):
		}
		remaining -= slice
	}
}

// recoverySleep backs off after a model failure, abortable in single
// slices via the running check.
func (a *Agent) recoverySleep(ctx context.Context) {
	for i := 0; i < a.recoverySleeps; i++ {
		if ctx.Err() != nil || !a.Running() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.recoverySlice):
		}
	}
}

func (a *Agent) appendMessage(msg anthropic.MessageParam) {
	a.mu.Lock()
	a.conversation = append(a.conversation, msg)
	a.mu.Unlock()
}

// trimHistory bounds the conversation: once it exceeds maxHistory
// entries, keep the first keepPrefix and last keepSuffix.
func (a *Agent) trimHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.conversation) <= maxHistory {
		return
	}
	trimmed := make([]anthropic.MessageParam, 0, keepPrefix+keepSuffix)
	trimmed = append(trimmed, a.conversation[:keepPrefix]...)
	trimmed = append(trimmed, a.conversation[len(a.conversation)-keepSuffix:]...)
	a.conversation = trimmed
}

// HistoryLen reports the conversation length for status output.
func (a *Agent) HistoryLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conversation)
}

func (a *Agent) buildSystemPrompt() string {
	p := a.profile
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are Wingman, an autonomous networking agent for %s.\n", p.Name)
	sb.WriteString("You run 24/7. Your mission: discover relevant events in SF, apply to them, " +
		"research attendees, find their social accounts, draft personalized messages, " +
		"and learn from every interaction.\n\n")

	sb.WriteString("## Your User\n")
	fmt.Fprintf(&sb, "- Name: %s\n", p.Name)
	fmt.Fprintf(&sb, "- Role: %s at %s\n", p.Role, p.Company)
	fmt.Fprintf(&sb, "- Product: %s\n", p.Product)
	fmt.Fprintf(&sb, "- Interests: %s\n", strings.Join(p.Interests, ", "))
	fmt.Fprintf(&sb, "- Networking goals: %s\n", strings.Join(p.NetworkingGoals, ", "))
	fmt.Fprintf(&sb, "- Target roles: %s\n", strings.Join(p.TargetRoles, ", "))
	fmt.Fprintf(&sb, "- Target companies: %s\n", strings.Join(p.TargetCompanies, ", "))
	fmt.Fprintf(&sb, "- Preferred event types: %s\n", strings.Join(p.PreferredCategories, ", "))
	maxEvents := p.MaxEventsPerWeek
	if maxEvents <= 0 {
		maxEvents = 4
	}
	fmt.Fprintf(&sb, "- Max events per week: %d\n", maxEvents)
	auto, suggest := p.Thresholds()
	fmt.Fprintf(&sb, "- Auto-apply threshold: %g/100\n", auto)
	fmt.Fprintf(&sb, "- Suggest threshold: %g/100\n", suggest)
	fmt.Fprintf(&sb, "- Message tone: %s\n\n", p.Tone())

	sb.WriteString(`## Rules
1. NEVER auto-send a message. Always draft, notify the user, wait for approval.
2. When an event looks relevant (score above the suggest threshold), notify the user.
3. When an event is very relevant (score above the auto-apply threshold), apply AND notify.
4. Always check the calendar for conflicts before scheduling.
5. When researching a person, keep digging until you have enough for a good message.
6. Learn from feedback. If the user rejects a topic repeatedly, stop suggesting it.
7. Save everything to the knowledge graph. It is your long-term memory.

## Your Loop
Each cycle: poll feedback, search for new events, score them, act on the score,
research attendees of confirmed events, then wait. If a step has nothing to do,
skip it. Think about what is most valuable right now.
`)

	return sb.String()
}

func marshalResult(result map[string]any) string {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

// truncate caps s at n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
