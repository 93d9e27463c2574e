// Package manager wires the agent, its collaborators and the
// delivery channels into one runnable process.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/wingmanhq/wingman/internal/agent"
	"github.com/wingmanhq/wingman/internal/bus"
	"github.com/wingmanhq/wingman/internal/channel"
	"github.com/wingmanhq/wingman/internal/clients"
	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/cron"
	"github.com/wingmanhq/wingman/internal/discovery"
	"github.com/wingmanhq/wingman/internal/event"
	"github.com/wingmanhq/wingman/internal/policy"
	"github.com/wingmanhq/wingman/internal/prefs"
	"github.com/wingmanhq/wingman/internal/profile"
	"github.com/wingmanhq/wingman/internal/safety"
	"github.com/wingmanhq/wingman/internal/scoring"
	"github.com/wingmanhq/wingman/internal/state"
	"github.com/wingmanhq/wingman/internal/tools"
)

// ModelFactory builds the reasoning model client, injectable in tests.
type ModelFactory func(apiKey string) agent.ModelClient

// Options for creating a Manager.
type Options struct {
	ModelFactory ModelFactory
	SignalChan   chan os.Signal // for testing signal handling
	ProfilePath  string
	StatePath    string
	CronPath     string
}

// Manager owns the full process: the agent loop, the scheduler, the
// channels and the persistent state.
type Manager struct {
	cfg     *config.Config
	profile *profile.Profile

	store    *state.Store
	gate     *safety.Gate
	scorer   *scoring.Engine
	learner  *prefs.Learner
	executor *policy.Executor
	bus      *bus.Bus
	channels *channel.Manager
	cron     *cron.Service
	disco    *discovery.Service
	agent    *agent.Agent

	tavily *clients.TavilyClient
	yutori *clients.YutoriClient
	graph  *clients.GraphClient

	signalChan chan os.Signal
	stopOnce   sync.Once
	stopCh     chan struct{}
	runCtx     context.Context

	mu         sync.Mutex
	breakdowns map[string]scoring.Breakdown
	samples    []prefs.DimensionSample
}

// New creates a Manager with default options.
func New(cfg *config.Config) (*Manager, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Manager with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Manager, error) {
	profilePath := opts.ProfilePath
	if profilePath == "" {
		profilePath = config.ProfilePath()
	}
	p, err := profile.Load(profilePath)
	if err != nil {
		return nil, fmt.Errorf("no onboarded user profile: %w (run `wingman onboard` first)", err)
	}

	m := &Manager{
		cfg:        cfg,
		profile:    p,
		stopCh:     make(chan struct{}),
		signalChan: opts.SignalChan,
		breakdowns: make(map[string]scoring.Breakdown),
	}

	statePath := opts.StatePath
	if statePath == "" {
		statePath = config.StatePath()
	}
	store, err := state.NewStore(statePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	m.store = store

	maxApplies := cfg.Limits.MaxAppliesPerDay
	if maxApplies <= 0 {
		maxApplies = config.DefaultMaxAppliesPerDay
	}
	maxMessages := cfg.Limits.MaxMessagesPerDay
	if maxMessages <= 0 {
		maxMessages = config.DefaultMaxMessagesPerDay
	}
	m.gate = safety.NewGate(cfg.Mode(), maxApplies, maxMessages)

	m.scorer = scoring.NewEngine()
	m.learner = prefs.NewLearner()
	m.bus = bus.NewBus(config.DefaultBufSize)

	// External clients are all optional; a missing key just disables
	// the corresponding tool.
	if cfg.Keys.Tavily != "" {
		if m.tavily, err = clients.NewTavilyClient(cfg.Keys.Tavily); err != nil {
			return nil, err
		}
	}
	if cfg.Keys.Yutori != "" {
		if m.yutori, err = clients.NewYutoriClient(cfg.Keys.Yutori); err != nil {
			return nil, err
		}
	}
	var vision *clients.RekaClient
	if cfg.Keys.Reka != "" {
		if vision, err = clients.NewRekaClient(cfg.Keys.Reka); err != nil {
			return nil, err
		}
	}
	if cfg.Graph.URI != "" {
		graph, err := clients.NewGraphClient(context.Background(),
			cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			log.Printf("[manager] neo4j unavailable, graph tools disabled: %v", err)
		} else {
			m.graph = graph
		}
	}
	var calendar *clients.CalendarClient
	if cfg.Calendar.CredentialsFile != "" {
		calendar, err = clients.NewCalendarClient(context.Background(),
			cfg.Calendar.CredentialsFile, cfg.Calendar.CalendarID)
		if err != nil {
			log.Printf("[manager] calendar unavailable: %v", err)
		}
	}

	// Interface values stay nil unless the concrete client exists.
	var applyBrowser policy.Browser
	var applyCalendar policy.Calendar
	if m.yutori != nil {
		applyBrowser = m.yutori
	}
	if calendar != nil {
		applyCalendar = calendar
	}
	m.executor = policy.NewExecutor(applyBrowser, applyCalendar, m.gate, cfg.Limits.ApplyRetries)

	var searcher discovery.Searcher
	var scouter discovery.Scouter
	if m.tavily != nil {
		searcher = m.tavily
	}
	if m.yutori != nil {
		scouter = m.yutori
	}
	m.disco = discovery.NewService(searcher, scouter)

	deps := agent.Deps{Feedback: m, Bus: m.bus}
	if m.tavily != nil {
		deps.Search = m.tavily
	}
	if m.yutori != nil {
		deps.Browser = m.yutori
	}
	if vision != nil {
		deps.Vision = vision
	}
	if m.graph != nil {
		deps.Graph = m.graph
	}
	if calendar != nil {
		deps.Calendar = calendar
	}

	factory := opts.ModelFactory
	if factory == nil {
		factory = agent.NewModelClient
	}
	m.agent = agent.New(p, cfg, m.gate, factory(cfg.Keys.Anthropic), deps)

	cronPath := opts.CronPath
	if cronPath == "" {
		cronPath = config.CronStorePath()
	}
	m.cron = cron.NewService(cronPath)
	m.cron.OnJob = m.handleJob

	chMgr, err := channel.NewManager(cfg.Channels, m.bus, m)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	m.channels = chMgr

	return m, nil
}

// Run starts everything and blocks until a signal or /stop. The agent
// loop resumes paused if that was its persisted status.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.runCtx = ctx

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[manager] panic: %v", r)
			_ = m.store.SetStatus(state.StatusCrashed)
			panic(r)
		}
	}()

	go m.bus.DispatchOutbound(ctx)

	if err := m.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[manager] channels started: %v", m.channels.EnabledChannels())

	if err := m.cron.Start(ctx); err != nil {
		log.Printf("[manager] cron start warning: %v", err)
	}
	if err := m.ensureDefaultJobs(); err != nil {
		log.Printf("[manager] ensure default jobs warning: %v", err)
	}

	status, err := m.store.Status()
	if err != nil {
		log.Printf("[manager] read status warning: %v", err)
		status = state.StatusStopped
	}
	if status == state.StatusPaused {
		log.Printf("[manager] agent was paused, staying paused until /resume")
	} else {
		if err := m.store.SetStatus(state.StatusRunning); err != nil {
			log.Printf("[manager] persist status warning: %v", err)
		}
		m.agent.Resume(ctx)
	}

	log.Printf("[manager] running in %s mode", m.cfg.Mode())

	sigCh := m.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	select {
	case <-sigCh:
	case <-m.stopCh:
	case <-ctx.Done():
	}

	log.Printf("[manager] shutting down...")
	return m.Shutdown()
}

// Shutdown stops the loop and releases every resource. Safe to call
// after a partial startup.
func (m *Manager) Shutdown() error {
	m.agent.Pause()
	m.cron.Stop()
	_ = m.channels.StopAll()
	if m.graph != nil {
		_ = m.graph.Close(context.Background())
	}
	if status, err := m.store.Status(); err == nil && status == state.StatusRunning {
		_ = m.store.SetStatus(state.StatusStopped)
	}
	if err := m.store.Close(); err != nil {
		log.Printf("[manager] close state store warning: %v", err)
	}
	log.Printf("[manager] shutdown complete")
	return nil
}

// Default schedules: discovery every 6 hours, weight rebalance
// nightly, both with seconds-precision cron expressions.
const (
	discoveryJobName = "discovery_cycle"
	discoveryExpr    = "0 0 */6 * * *"
	rebalanceJobName = "rebalance_weights"
	rebalanceExpr    = "0 30 3 * * *"
)

func (m *Manager) ensureDefaultJobs() error {
	if _, ok := m.cron.FindByTask(cron.TaskDiscoveryCycle); !ok {
		if _, err := m.cron.AddJob(discoveryJobName,
			cron.Schedule{Kind: "cron", Expr: discoveryExpr},
			cron.Payload{Task: cron.TaskDiscoveryCycle, Notify: true}); err != nil {
			return err
		}
	}
	if _, ok := m.cron.FindByTask(cron.TaskRebalanceWeights); !ok {
		if _, err := m.cron.AddJob(rebalanceJobName,
			cron.Schedule{Kind: "cron", Expr: rebalanceExpr},
			cron.Payload{Task: cron.TaskRebalanceWeights}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) handleJob(job cron.Job) (string, error) {
	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	switch job.Payload.Task {
	case cron.TaskDiscoveryCycle:
		return m.runDiscoveryCycle(ctx)
	case cron.TaskRebalanceWeights:
		return m.rebalanceWeights()
	case cron.TaskPollScout:
		return m.pollScout(ctx, job.Payload.ScoutID)
	default:
		return "", fmt.Errorf("unknown cron task: %s", job.Payload.Task)
	}
}

// runDiscoveryCycle is the scheduled pipeline: discover, filter
// avoided topics, score, act, persist to the graph, notify.
func (m *Manager) runDiscoveryCycle(ctx context.Context) (string, error) {
	events, err := m.disco.DiscoverEvents(ctx, m.profile)
	if err != nil {
		return "", err
	}
	log.Printf("[manager] discovery found %d events", len(events))

	processed := 0
	for _, ev := range events {
		if topic, hit := m.avoidedTopic(ev); hit {
			log.Printf("[manager] skipping %q, avoided topic %q", ev.Title, topic)
			continue
		}
		if ev.ID == "" {
			ev.ID = "ev-" + uuid.NewString()[:8]
		}

		ev.RelevanceScore = m.scorer.Score(ev, m.profile)
		if issues := scoring.ValidateEnriched(ev); len(issues) > 0 {
			log.Printf("[manager] event %s validation: %v", ev.ID, issues)
		}
		m.recordBreakdown(ev.ID, m.scorer.Breakdown(ev, m.profile))

		res := m.executor.ProcessEvent(ctx, ev, m.profile)
		m.persistToGraph(ctx, ev)
		m.notifyDecision(ev, res)
		processed++
	}

	return fmt.Sprintf("processed %d/%d events", processed, len(events)), nil
}

func (m *Manager) avoidedTopic(ev *event.Event) (string, bool) {
	for _, t := range ev.Topics {
		if m.learner.Avoided(t) {
			return t, true
		}
	}
	return "", false
}

func (m *Manager) recordBreakdown(eventID string, bd scoring.Breakdown) {
	m.mu.Lock()
	m.breakdowns[eventID] = bd
	m.mu.Unlock()
}

func (m *Manager) persistToGraph(ctx context.Context, ev *event.Event) {
	if m.graph == nil || ev.URL == "" {
		return
	}
	props := map[string]any{
		"id":     ev.ID,
		"title":  ev.Title,
		"source": string(ev.Source),
		"score":  ev.RelevanceScore,
	}
	if ev.Date != nil {
		props["date"] = ev.Date.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if err := m.graph.MergeEvent(ctx, ev.URL, props); err != nil {
		log.Printf("[manager] graph merge event warning: %v", err)
		return
	}
	for _, topic := range ev.Topics {
		if err := m.graph.MergeTopic(ctx, topic); err != nil {
			continue
		}
		_ = m.graph.CreateRelationship(ctx,
			"Event", "url", ev.URL, "ABOUT", "Topic", "name", topic)
	}
	for _, sp := range ev.Speakers {
		if sp.Name == "" {
			continue
		}
		if err := m.graph.MergePerson(ctx, sp.Name, map[string]any{
			"company": sp.Company, "role": sp.Role,
		}); err != nil {
			continue
		}
		_ = m.graph.CreateRelationship(ctx,
			"Person", "name", sp.Name, "SPEAKS_AT", "Event", "url", ev.URL)
		if sp.Company != "" {
			if err := m.graph.MergeCompany(ctx, sp.Company, nil); err == nil {
				_ = m.graph.CreateRelationship(ctx,
					"Person", "name", sp.Name, "WORKS_AT", "Company", "name", sp.Company)
			}
		}
	}
}

func (m *Manager) notifyDecision(ev *event.Event, res policy.Result) {
	data := map[string]any{
		"event_id": ev.ID,
		"url":      ev.URL,
		"score":    ev.RelevanceScore,
	}

	switch res["action"] {
	case policy.ActionAutoApply:
		app, _ := res["application"].(policy.Result)
		if status, _ := app["status"].(string); status == "manual_required" {
			m.bus.Publish(bus.Notification{
				Type:     bus.TypeManualRequired,
				Priority: bus.PriorityHigh,
				Title:    ev.Title,
				Body:     fmt.Sprintf("Automatic application failed, please apply manually: %s", ev.URL),
				Data:     data,
			})
			return
		}
		m.bus.Publish(bus.Notification{
			Type:     bus.TypeApplicationSubmitted,
			Priority: bus.PriorityNormal,
			Title:    ev.Title,
			Body:     fmt.Sprintf("Applied automatically (score %.0f). %s", ev.RelevanceScore, res["reason"]),
			Data:     data,
		})
	case policy.ActionSuggest:
		m.bus.Publish(bus.Notification{
			Type:     bus.TypeEventSuggestion,
			Priority: bus.PriorityNormal,
			Title:    ev.Title,
			Body:     fmt.Sprintf("Looks relevant (score %.0f). Reply /accept %s or /reject %s.", ev.RelevanceScore, ev.ID, ev.ID),
			Data:     data,
		})
	}
}

// rebalanceWeights recomputes scoring weights from accumulated
// feedback samples and installs them on the scorer.
func (m *Manager) rebalanceWeights() (string, error) {
	m.mu.Lock()
	history := make([]prefs.DimensionSample, len(m.samples))
	copy(history, m.samples)
	m.mu.Unlock()

	weights := m.learner.RecalculateWeights(history)
	asFloat := make(map[string]float64, len(weights))
	for dim, w := range weights {
		asFloat[dim] = float64(w)
	}
	m.scorer.SetWeights(asFloat)

	log.Printf("[manager] rebalanced weights from %d samples: %v", len(history), weights)
	return fmt.Sprintf("weights %v from %d samples", weights, len(history)), nil
}

func (m *Manager) pollScout(ctx context.Context, scoutID string) (string, error) {
	if m.yutori == nil {
		return "", fmt.Errorf("yutori client not configured")
	}
	if scoutID == "" {
		return "", fmt.Errorf("poll_scout job has no scout id")
	}
	task, err := m.yutori.ScoutingGet(ctx, scoutID)
	if err != nil {
		return "", err
	}
	if len(task.Result) > 0 {
		body, err := json.Marshal(task.Result)
		if err != nil {
			return "", fmt.Errorf("render scout result: %w", err)
		}
		m.bus.Publish(bus.Notification{
			Type:     bus.TypeStatusUpdate,
			Priority: bus.PriorityLow,
			Title:    "Scout update",
			Body:     string(body),
			Data:     map[string]any{"scout_id": scoutID, "status": task.Status},
		})
	}
	return task.Status, nil
}

// DrainFeedback consumes queued feedback for the agent's poll tool.
// Every item also trains the learner, and items matching a scored
// event become weight-rebalance samples.
func (m *Manager) DrainFeedback() ([]prefs.Feedback, error) {
	items, err := m.store.DrainFeedback()
	if err != nil {
		return nil, err
	}
	for _, fb := range items {
		m.learner.ProcessFeedback(fb)
		m.mu.Lock()
		if bd, ok := m.breakdowns[fb.EventID]; ok {
			if fb.Action == prefs.ActionAccept || fb.Action == prefs.ActionReject {
				m.samples = append(m.samples, prefs.DimensionSample{Action: fb.Action, Scores: bd})
			}
			// A breakdown is consumed by the first feedback that
			// references it.
			delete(m.breakdowns, fb.EventID)
		}
		m.mu.Unlock()
	}
	return items, nil
}

// RunNow triggers a discovery cycle immediately, outside the cron
// schedule.
func (m *Manager) RunNow() error {
	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	summary, err := m.runDiscoveryCycle(ctx)
	if err != nil {
		return err
	}
	log.Printf("[manager] manual discovery cycle: %s", summary)
	return nil
}

// Pause implements channel.Commands.
func (m *Manager) Pause() error {
	m.agent.Pause()
	return m.store.SetStatus(state.StatusPaused)
}

// Resume implements channel.Commands.
func (m *Manager) Resume() error {
	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	m.agent.Resume(ctx)
	return m.store.SetStatus(state.StatusRunning)
}

// Stop implements channel.Commands and ends the whole process.
func (m *Manager) Stop() error {
	if err := m.store.SetStatus(state.StatusStopped); err != nil {
		log.Printf("[manager] persist status warning: %v", err)
	}
	m.stopOnce.Do(func() { close(m.stopCh) })
	return nil
}

// StatusText implements channel.Commands, rendered by telegram.
func (m *Manager) StatusText() string {
	var sb strings.Builder

	status, err := m.store.Status()
	if err != nil {
		status = "unknown"
	}
	snap := m.gate.Snapshot()
	stats := m.learner.Stats()

	fmt.Fprintf(&sb, "Status: %s\n", status)
	fmt.Fprintf(&sb, "Mode: %s\n", snap.Mode)
	fmt.Fprintf(&sb, "Applies today: %d/%d\n", snap.AppliesToday, snap.MaxApplies)
	fmt.Fprintf(&sb, "Messages today: %d/%d\n", snap.MessagesToday, snap.MaxMessages)
	fmt.Fprintf(&sb, "Feedback processed: %d\n", stats.TotalFeedback)
	if pending, err := m.store.PendingFeedbackCount(); err == nil {
		fmt.Fprintf(&sb, "Feedback pending: %d\n", pending)
	}
	if len(stats.AvoidedTopics) > 0 {
		fmt.Fprintf(&sb, "Avoided topics: %s\n", strings.Join(stats.AvoidedTopics, ", "))
	}
	fmt.Fprintf(&sb, "Conversation length: %d\n", m.agent.HistoryLen())
	fmt.Fprintf(&sb, "Tools: %d available", len(tools.All()))

	return sb.String()
}

// SubmitFeedback implements channel.Commands; feedback queues until
// the agent polls it.
func (m *Manager) SubmitFeedback(fb prefs.Feedback) error {
	return m.store.EnqueueFeedback(fb)
}
