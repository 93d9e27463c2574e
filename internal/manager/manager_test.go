package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/wingmanhq/wingman/internal/agent"
	"github.com/wingmanhq/wingman/internal/bus"
	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/cron"
	"github.com/wingmanhq/wingman/internal/prefs"
	"github.com/wingmanhq/wingman/internal/scoring"
	"github.com/wingmanhq/wingman/internal/state"
)

type stubModel struct{}

func (stubModel) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return nil, errors.New("stub model")
}

func writeProfile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "profile.json")
	data := `{"name":"Ada","role":"Founder","company":"Looply","interests":["AI","devtools"]}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Agent.Mode = string(config.ModeDryRun)

	m, err := NewWithOptions(cfg, Options{
		ModelFactory: func(string) agent.ModelClient { return stubModel{} },
		ProfilePath:  writeProfile(t, dir),
		StatePath:    filepath.Join(dir, "state.db"),
		CronPath:     filepath.Join(dir, "jobs.json"),
	})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	t.Cleanup(func() { _ = m.store.Close() })
	return m
}

func TestNewRequiresProfile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()

	_, err := NewWithOptions(cfg, Options{
		ModelFactory: func(string) agent.ModelClient { return stubModel{} },
		ProfilePath:  filepath.Join(dir, "missing.json"),
		StatePath:    filepath.Join(dir, "state.db"),
		CronPath:     filepath.Join(dir, "jobs.json"),
	})
	if err == nil {
		t.Fatal("expected error without an onboarded profile")
	}
	if !strings.Contains(err.Error(), "onboard") {
		t.Fatalf("error should point at onboarding, got: %v", err)
	}
}

func TestStatusText(t *testing.T) {
	m := newTestManager(t)
	text := m.StatusText()

	for _, want := range []string{"Status:", "Mode: dry_run", "Applies today: 0/", "Feedback pending: 0"} {
		if !strings.Contains(text, want) {
			t.Fatalf("status text missing %q:\n%s", want, text)
		}
	}
}

func TestPauseResumeStopPersistStatus(t *testing.T) {
	m := newTestManager(t)

	if err := m.Pause(); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.store.Status(); got != state.StatusPaused {
		t.Fatalf("status = %s, want paused", got)
	}

	if err := m.Resume(); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.store.Status(); got != state.StatusRunning {
		t.Fatalf("status = %s, want running", got)
	}
	m.agent.Pause()

	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.store.Status(); got != state.StatusStopped {
		t.Fatalf("status = %s, want stopped", got)
	}

	// Stop is idempotent.
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestDrainFeedbackTrainsLearnerAndSamples(t *testing.T) {
	m := newTestManager(t)

	m.recordBreakdown("ev-1", scoring.Breakdown{
		scoring.DimTopic: 30, scoring.DimPeople: 0, scoring.DimCategory: 0,
		scoring.DimTiming: 7.5, scoring.DimHistorical: 7.5,
	})

	if err := m.SubmitFeedback(prefs.Feedback{
		Action: prefs.ActionAccept, EventID: "ev-1", Topics: []string{"ai"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.SubmitFeedback(prefs.Feedback{
		Action: prefs.ActionRate, EventID: "ev-9", Rating: 4, Topics: []string{"ai"},
	}); err != nil {
		t.Fatal(err)
	}

	items, err := m.DrainFeedback()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("drained %d items, want 2", len(items))
	}
	if m.learner.FeedbackCount() != 2 {
		t.Fatalf("learner processed %d, want 2", m.learner.FeedbackCount())
	}
	if got := m.learner.Affinity("ai"); got != 0.6 {
		t.Fatalf("affinity = %g, want 0.6", got)
	}

	// Only the accept with a known breakdown became a sample.
	m.mu.Lock()
	samples := len(m.samples)
	m.mu.Unlock()
	if samples != 1 {
		t.Fatalf("samples = %d, want 1", samples)
	}
}

func TestRebalanceWeightsWithFewSamples(t *testing.T) {
	m := newTestManager(t)

	summary, err := m.rebalanceWeights()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(summary, "0 samples") {
		t.Fatalf("summary = %q", summary)
	}
	if got := m.scorer.Weights()[scoring.DimTopic]; got != 30 {
		t.Fatalf("topic weight = %g, want initial 30", got)
	}
}

func TestRunDiscoveryCycleWithoutSearcher(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.runDiscoveryCycle(context.Background()); err == nil {
		t.Fatal("expected error without a search client")
	}
}

func TestHandleJobUnknownTask(t *testing.T) {
	m := newTestManager(t)
	job := cron.Job{Payload: cron.Payload{Task: "mystery"}}
	if _, err := m.handleJob(job); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestRunStopsOnSignal(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Agent.Mode = string(config.ModeDryRun)

	sigCh := make(chan os.Signal, 1)
	m, err := NewWithOptions(cfg, Options{
		ModelFactory: func(string) agent.ModelClient { return stubModel{} },
		SignalChan:   sigCh,
		ProfilePath:  writeProfile(t, dir),
		StatePath:    filepath.Join(dir, "state.db"),
		CronPath:     filepath.Join(dir, "jobs.json"),
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop on signal")
	}
}

func TestRunSchedulesDefaultJobs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Agent.Mode = string(config.ModeDryRun)

	sigCh := make(chan os.Signal, 1)
	m, err := NewWithOptions(cfg, Options{
		ModelFactory: func(string) agent.ModelClient { return stubModel{} },
		SignalChan:   sigCh,
		ProfilePath:  writeProfile(t, dir),
		StatePath:    filepath.Join(dir, "state.db"),
		CronPath:     filepath.Join(dir, "jobs.json"),
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	time.Sleep(100 * time.Millisecond)

	if _, ok := m.cron.FindByTask("discovery_cycle"); !ok {
		t.Error("discovery job not scheduled")
	}
	if _, ok := m.cron.FindByTask("rebalance_weights"); !ok {
		t.Error("rebalance job not scheduled")
	}

	sigCh <- syscall.SIGTERM
	<-done
}

func TestPollScoutPublishesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scouting/tasks/sc-1" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"task_id":"sc-1","status":"active","result":{"events":["AI Mixer tonight"]}}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Agent.Mode = string(config.ModeDryRun)
	cfg.Keys.Yutori = "test-key"

	m, err := NewWithOptions(cfg, Options{
		ModelFactory: func(string) agent.ModelClient { return stubModel{} },
		ProfilePath:  writeProfile(t, dir),
		StatePath:    filepath.Join(dir, "state.db"),
		CronPath:     filepath.Join(dir, "jobs.json"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.store.Close() })
	m.yutori.SetBaseURL(srv.URL)

	status, err := m.pollScout(context.Background(), "sc-1")
	if err != nil {
		t.Fatal(err)
	}
	if status != "active" {
		t.Fatalf("status = %q, want active", status)
	}

	select {
	case n := <-m.bus.Outbound:
		if n.Type != bus.TypeStatusUpdate {
			t.Fatalf("notification type = %s", n.Type)
		}
		if !strings.Contains(n.Body, "AI Mixer tonight") {
			t.Fatalf("body should carry the scout result, got %q", n.Body)
		}
		if n.Data["scout_id"] != "sc-1" {
			t.Fatalf("data = %v", n.Data)
		}
	default:
		t.Fatal("scout result not published")
	}

	if _, err := m.pollScout(context.Background(), ""); err == nil {
		t.Fatal("expected error for a job without a scout id")
	}
}

func TestDrainFeedbackEvictsConsumedBreakdowns(t *testing.T) {
	m := newTestManager(t)

	m.recordBreakdown("ev-7", scoring.Breakdown{scoring.DimTopic: 30})
	if err := m.SubmitFeedback(prefs.Feedback{
		Action: prefs.ActionReject, EventID: "ev-7", Topics: []string{"crypto"},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := m.DrainFeedback(); err != nil {
		t.Fatal(err)
	}

	m.mu.Lock()
	_, kept := m.breakdowns["ev-7"]
	samples := len(m.samples)
	m.mu.Unlock()
	if kept {
		t.Fatal("breakdown survived its consuming feedback")
	}
	if samples != 1 {
		t.Fatalf("samples = %d, want 1", samples)
	}
}
