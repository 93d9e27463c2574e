// Package policy turns relevance scores into actions and executes the
// apply/schedule pipeline against the browser and calendar clients.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/event"
	"github.com/wingmanhq/wingman/internal/profile"
	"github.com/wingmanhq/wingman/internal/safety"
	"github.com/wingmanhq/wingman/internal/tools"
)

// Actions a decision can select.
const (
	ActionAutoApply = "auto_apply"
	ActionSuggest   = "suggest"
	ActionSkip      = "skip"
)

// Decision is the outcome of the score threshold matrix.
type Decision struct {
	Action         string `json:"action"`
	ShouldSchedule bool   `json:"should_schedule"`
	Reason         string `json:"reason"`
}

// Decide maps a score onto an action using the profile's thresholds.
func Decide(score float64, p *profile.Profile) Decision {
	auto, suggest := p.Thresholds()
	switch {
	case score >= auto:
		return Decision{
			Action:         ActionAutoApply,
			ShouldSchedule: true,
			Reason:         fmt.Sprintf("Score %g >= auto-apply threshold %g", score, auto),
		}
	case score >= suggest:
		return Decision{
			Action: ActionSuggest,
			Reason: fmt.Sprintf("Score %g >= suggest threshold %g", score, suggest),
		}
	default:
		return Decision{
			Action: ActionSkip,
			Reason: fmt.Sprintf("Score %g below suggest threshold %g", score, suggest),
		}
	}
}

// Result is the key-value shape every pipeline step returns. Errors
// are carried in the map, never raised, so one bad event cannot stop
// a discovery cycle.
type Result map[string]any

// Browser starts a browsing automation task and returns its id.
type Browser interface {
	CreateTask(ctx context.Context, task, startURL string) (string, error)
}

// Calendar checks availability and creates events.
type Calendar interface {
	CheckBusy(ctx context.Context, start, end time.Time) (bool, error)
	CreateEvent(ctx context.Context, summary string, start, end time.Time) (string, error)
}

// Executor runs the apply and schedule side of a decision. Either
// client may be nil, in which case the corresponding step degrades to
// a not-configured result.
type Executor struct {
	browser  Browser
	calendar Calendar
	gate     *safety.Gate

	maxRetries    int
	retryInterval time.Duration
}

func NewExecutor(browser Browser, calendar Calendar, gate *safety.Gate, maxRetries int) *Executor {
	if maxRetries < 0 {
		maxRetries = config.DefaultApplyRetries
	}
	return &Executor{
		browser:       browser,
		calendar:      calendar,
		gate:          gate,
		maxRetries:    maxRetries,
		retryInterval: 2 * time.Second,
	}
}

// ApplyToEvent attempts a single RSVP/apply via the browser client.
func (e *Executor) ApplyToEvent(ctx context.Context, ev *event.Event, p *profile.Profile) Result {
	if v := e.gate.Permit(tools.Browse); !v.Allowed {
		return Result{"status": "blocked", "reason": v.Reason}
	}
	if e.browser == nil {
		return Result{"status": "error", "reason": "browser client not configured"}
	}

	task := fmt.Sprintf(
		"RSVP or apply to the event at %s. Fill in any forms with: Name: %s, Email: %s, Role: %s, Company: %s.",
		ev.URL, p.Name, p.Email, p.Role, p.Company,
	)
	taskID, err := e.browser.CreateTask(ctx, task, ev.URL)
	if err != nil {
		return Result{"status": "error", "reason": err.Error()}
	}

	e.gate.RecordApply()
	return Result{"status": "applied", "task_id": taskID}
}

// ApplyWithRetry retries ApplyToEvent up to maxRetries+1 times. Any
// non-error status returns immediately; exhaustion hands off to a
// human with the event URL attached.
func (e *Executor) ApplyWithRetry(ctx context.Context, ev *event.Event, p *profile.Profile) Result {
	lastReason := "unknown"
	attempt := 0

	operation := func() (Result, error) {
		attempt++
		res := e.ApplyToEvent(ctx, ev, p)
		if status, _ := res["status"].(string); status != "error" {
			return res, nil
		}
		if reason, ok := res["reason"].(string); ok {
			lastReason = reason
		}
		log.Printf("[policy] apply attempt %d/%d failed: %s", attempt, e.maxRetries+1, lastReason)
		return nil, errors.New(lastReason)
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.retryInterval)),
		backoff.WithMaxTries(uint(e.maxRetries+1)),
	)
	if err != nil {
		return Result{"status": "manual_required", "reason": lastReason, "url": ev.URL}
	}
	return res
}

// ScheduleEvent adds the event to the calendar when the slot is free.
func (e *Executor) ScheduleEvent(ctx context.Context, ev *event.Event) Result {
	if e.calendar == nil {
		return Result{"status": "not_connected", "reason": "Google Calendar not connected"}
	}
	if v := e.gate.Permit(tools.Calendar); !v.Allowed {
		return Result{"status": "blocked", "reason": v.Reason}
	}
	if ev.Date == nil {
		return Result{"status": "error", "reason": "event has no date"}
	}

	start := *ev.Date
	end := start.Add(2 * time.Hour)
	busy, err := e.calendar.CheckBusy(ctx, start, end)
	if err != nil {
		return Result{"status": "error", "reason": err.Error()}
	}
	if busy {
		return Result{"status": "conflict", "reason": "calendar busy at event time"}
	}

	id, err := e.calendar.CreateEvent(ctx, ev.Title, start, end)
	if err != nil {
		return Result{"status": "error", "reason": err.Error()}
	}
	return Result{"status": "scheduled", "calendar_event_id": id}
}

// ProcessEvent runs the full decide-apply-schedule pipeline for one
// scored event.
func (e *Executor) ProcessEvent(ctx context.Context, ev *event.Event, p *profile.Profile) Result {
	d := Decide(ev.RelevanceScore, p)
	res := Result{
		"action":          d.Action,
		"reason":          d.Reason,
		"should_schedule": d.ShouldSchedule,
	}

	switch d.Action {
	case ActionAutoApply:
		res["application"] = e.ApplyWithRetry(ctx, ev, p)
		if d.ShouldSchedule {
			res["schedule"] = e.ScheduleEvent(ctx, ev)
		}
	case ActionSuggest:
		res["application"] = e.ApplyWithRetry(ctx, ev, p)
	}
	return res
}

// BusyPeriod is one occupied calendar slot.
type BusyPeriod struct {
	Start time.Time
	End   time.Time
}

// ConflictsWith reports whether an event time falls inside any busy
// period.
func ConflictsWith(eventTime time.Time, busy []BusyPeriod) bool {
	for _, b := range busy {
		if !eventTime.Before(b.Start) && !eventTime.After(b.End) {
			return true
		}
	}
	return false
}
