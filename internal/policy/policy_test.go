package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/event"
	"github.com/wingmanhq/wingman/internal/profile"
	"github.com/wingmanhq/wingman/internal/safety"
)

func testProfile() *profile.Profile {
	return &profile.Profile{Name: "Ada", Email: "ada@example.com"}
}

func TestDecide(t *testing.T) {
	p := testProfile()
	tests := []struct {
		score        float64
		wantAction   string
		wantSchedule bool
	}{
		{90, ActionAutoApply, true},
		{80, ActionAutoApply, true},
		{79.9, ActionSuggest, false},
		{65, ActionSuggest, false},
		{50, ActionSuggest, false},
		{49.9, ActionSkip, false},
		{30, ActionSkip, false},
		{0, ActionSkip, false},
	}
	for _, tt := range tests {
		d := Decide(tt.score, p)
		if d.Action != tt.wantAction || d.ShouldSchedule != tt.wantSchedule {
			t.Errorf("Decide(%v) = %s/%v, want %s/%v",
				tt.score, d.Action, d.ShouldSchedule, tt.wantAction, tt.wantSchedule)
		}
	}
}

func TestDecideCustomThresholds(t *testing.T) {
	p := &profile.Profile{Name: "Ada", AutoApplyThreshold: 90, SuggestThreshold: 70}
	if d := Decide(85, p); d.Action != ActionSuggest {
		t.Errorf("Decide(85) with auto=90 = %s, want suggest", d.Action)
	}
	if d := Decide(60, p); d.Action != ActionSkip {
		t.Errorf("Decide(60) with suggest=70 = %s, want skip", d.Action)
	}
}

type fakeBrowser struct {
	calls   int
	failFor int
	err     error
}

func (b *fakeBrowser) CreateTask(ctx context.Context, task, startURL string) (string, error) {
	b.calls++
	if b.calls <= b.failFor {
		if b.err != nil {
			return "", b.err
		}
		return "", errors.New("upstream timeout")
	}
	return "task-123", nil
}

type fakeCalendar struct {
	busy    bool
	created []string
}

func (c *fakeCalendar) CheckBusy(ctx context.Context, start, end time.Time) (bool, error) {
	return c.busy, nil
}

func (c *fakeCalendar) CreateEvent(ctx context.Context, summary string, start, end time.Time) (string, error) {
	c.created = append(c.created, summary)
	return "cal-1", nil
}

func liveGate() *safety.Gate {
	return safety.NewGate(config.ModeLive, 10, 5)
}

func newTestExecutor(b Browser, c Calendar, retries int) *Executor {
	e := NewExecutor(b, c, liveGate(), retries)
	e.retryInterval = 0
	return e
}

func TestApplyToEventNotConfigured(t *testing.T) {
	e := newTestExecutor(nil, nil, 2)
	res := e.ApplyToEvent(context.Background(), &event.Event{URL: "https://lu.ma/x"}, testProfile())
	if res["status"] != "error" || res["reason"] != "browser client not configured" {
		t.Errorf("ApplyToEvent = %v, want not-configured error result", res)
	}
}

func TestApplyToEventBlockedInDryRun(t *testing.T) {
	e := NewExecutor(&fakeBrowser{}, nil, safety.NewGate(config.ModeDryRun, 10, 5), 2)
	res := e.ApplyToEvent(context.Background(), &event.Event{URL: "https://lu.ma/x"}, testProfile())
	if res["status"] != "blocked" {
		t.Errorf("status = %v, want blocked", res["status"])
	}
}

func TestApplyWithRetrySucceedsAfterFailures(t *testing.T) {
	b := &fakeBrowser{failFor: 2}
	e := newTestExecutor(b, nil, 2)
	res := e.ApplyWithRetry(context.Background(), &event.Event{URL: "https://lu.ma/x"}, testProfile())
	if res["status"] != "applied" {
		t.Errorf("status = %v, want applied on third attempt", res["status"])
	}
	if b.calls != 3 {
		t.Errorf("calls = %d, want 3", b.calls)
	}
}

func TestApplyWithRetryExhaustionIsManualRequired(t *testing.T) {
	b := &fakeBrowser{failFor: 100, err: errors.New("form rejected")}
	e := newTestExecutor(b, nil, 2)
	res := e.ApplyWithRetry(context.Background(), &event.Event{URL: "https://lu.ma/x"}, testProfile())
	if res["status"] != "manual_required" {
		t.Fatalf("status = %v, want manual_required", res["status"])
	}
	if res["url"] != "https://lu.ma/x" {
		t.Errorf("url = %v, want event URL for the human hand-off", res["url"])
	}
	if res["reason"] != "form rejected" {
		t.Errorf("reason = %v, want last error reason", res["reason"])
	}
	if b.calls != 3 {
		t.Errorf("calls = %d, want maxRetries+1 = 3", b.calls)
	}
}

func TestApplyWithRetryBlockedReturnsImmediately(t *testing.T) {
	b := &fakeBrowser{}
	e := NewExecutor(b, nil, safety.NewGate(config.ModeDryRun, 10, 5), 2)
	e.retryInterval = 0
	res := e.ApplyWithRetry(context.Background(), &event.Event{URL: "u"}, testProfile())
	if res["status"] != "blocked" {
		t.Errorf("status = %v, want blocked without retrying", res["status"])
	}
	if b.calls != 0 {
		t.Errorf("browser called %d times while blocked, want 0", b.calls)
	}
}

func TestScheduleEvent(t *testing.T) {
	when := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)
	ev := &event.Event{Title: "AI Dinner", Date: &when}

	c := &fakeCalendar{}
	e := newTestExecutor(nil, c, 2)
	res := e.ScheduleEvent(context.Background(), ev)
	if res["status"] != "scheduled" || res["calendar_event_id"] != "cal-1" {
		t.Errorf("ScheduleEvent = %v, want scheduled", res)
	}

	c.busy = true
	if res := e.ScheduleEvent(context.Background(), ev); res["status"] != "conflict" {
		t.Errorf("ScheduleEvent busy = %v, want conflict", res)
	}

	e = newTestExecutor(nil, nil, 2)
	if res := e.ScheduleEvent(context.Background(), ev); res["status"] != "not_connected" {
		t.Errorf("ScheduleEvent no client = %v, want not_connected", res)
	}
}

func TestProcessEvent(t *testing.T) {
	when := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)
	e := newTestExecutor(&fakeBrowser{}, &fakeCalendar{}, 2)

	high := &event.Event{Title: "x", URL: "u", Date: &when, RelevanceScore: 90}
	res := e.ProcessEvent(context.Background(), high, testProfile())
	if res["action"] != ActionAutoApply {
		t.Errorf("action = %v, want auto_apply", res["action"])
	}
	if _, ok := res["application"]; !ok {
		t.Error("auto_apply result missing application")
	}
	if _, ok := res["schedule"]; !ok {
		t.Error("auto_apply result missing schedule")
	}

	mid := &event.Event{Title: "x", URL: "u", RelevanceScore: 65}
	res = e.ProcessEvent(context.Background(), mid, testProfile())
	if res["action"] != ActionSuggest {
		t.Errorf("action = %v, want suggest", res["action"])
	}
	if _, ok := res["schedule"]; ok {
		t.Error("suggest result should not schedule")
	}

	low := &event.Event{Title: "x", URL: "u", RelevanceScore: 30}
	res = e.ProcessEvent(context.Background(), low, testProfile())
	if res["action"] != ActionSkip {
		t.Errorf("action = %v, want skip", res["action"])
	}
	if _, ok := res["application"]; ok {
		t.Error("skip result should not apply")
	}
}

func TestConflictsWith(t *testing.T) {
	busy := []BusyPeriod{
		{Start: time.Date(2026, 3, 5, 17, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 5, 19, 0, 0, 0, time.UTC)},
	}
	inside := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC)
	if !ConflictsWith(inside, busy) {
		t.Error("ConflictsWith(inside) = false, want true")
	}
	if ConflictsWith(outside, busy) {
		t.Error("ConflictsWith(outside) = true, want false")
	}
}
