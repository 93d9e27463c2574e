// Package safety gates side-effecting tool calls by run mode and
// daily quota. Every tool dispatch passes through Permit first.
package safety

import (
	"fmt"
	"sync"
	"time"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/tools"
)

// Verdict is the outcome of a Permit check. A blocked verdict carries
// a human-readable reason naming the mode or exceeded quota.
type Verdict struct {
	Allowed bool
	Reason  string
}

var allowed = Verdict{Allowed: true}

// Gate tracks run mode and per-day counters. The counters reset
// lazily when the UTC date rolls over.
type Gate struct {
	mode        config.Mode
	maxApplies  int
	maxMessages int

	mu            sync.Mutex
	appliesToday  int
	messagesToday int
	lastReset     string

	now func() time.Time
}

func NewGate(mode config.Mode, maxApplies, maxMessages int) *Gate {
	g := &Gate{
		mode:        mode,
		maxApplies:  maxApplies,
		maxMessages: maxMessages,
		now:         time.Now,
	}
	g.lastReset = g.today()
	return g
}

func (g *Gate) today() string {
	return g.now().UTC().Format("2006-01-02")
}

// resetIfNewDay clears the counters when the date changed. Caller
// holds g.mu.
func (g *Gate) resetIfNewDay() {
	if d := g.today(); d != g.lastReset {
		g.appliesToday = 0
		g.messagesToday = 0
		g.lastReset = d
	}
}

// Permit decides whether a tool may run right now. Read-only tools
// always pass; side-effecting tools are blocked outright in dry_run
// and replay, and quota-limited in canary.
func (g *Gate) Permit(name tools.Name) Verdict {
	if !name.SideEffecting() {
		return allowed
	}

	switch g.mode {
	case config.ModeDryRun, config.ModeReplay:
		return Verdict{Reason: fmt.Sprintf("Side effects disabled in %s mode", g.mode)}
	case config.ModeCanary:
		g.mu.Lock()
		defer g.mu.Unlock()
		g.resetIfNewDay()
		if name == tools.Browse && g.appliesToday >= g.maxApplies {
			return Verdict{Reason: fmt.Sprintf("Daily apply limit reached (%d/%d)", g.appliesToday, g.maxApplies)}
		}
		if name == tools.Notify && g.messagesToday >= g.maxMessages {
			return Verdict{Reason: fmt.Sprintf("Daily message limit reached (%d/%d)", g.messagesToday, g.maxMessages)}
		}
		return allowed
	default:
		return allowed
	}
}

// RecordApply increments the apply counter. Called only after a
// browse dispatch succeeded, never on a failed one.
func (g *Gate) RecordApply() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDay()
	g.appliesToday++
}

// RecordMessage increments the notification counter after a
// successful send.
func (g *Gate) RecordMessage() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDay()
	g.messagesToday++
}

// Snapshot reports current mode and counter state for status output.
type Snapshot struct {
	Mode          config.Mode `json:"mode"`
	AppliesToday  int         `json:"applies_today"`
	MaxApplies    int         `json:"max_applies_per_day"`
	MessagesToday int         `json:"messages_today"`
	MaxMessages   int         `json:"max_messages_per_day"`
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDay()
	return Snapshot{
		Mode:          g.mode,
		AppliesToday:  g.appliesToday,
		MaxApplies:    g.maxApplies,
		MessagesToday: g.messagesToday,
		MaxMessages:   g.maxMessages,
	}
}
