// Package cron schedules recurring agent work: discovery cycles,
// weight rebalancing and scout polling. Jobs persist to a JSON store
// so schedules survive restarts.
package cron

import (
	"github.com/google/uuid"
)

// Tasks a job payload can name.
const (
	TaskDiscoveryCycle   = "discovery_cycle"
	TaskRebalanceWeights = "rebalance_weights"
	TaskPollScout        = "poll_scout"
)

// Schedule describes when a job runs. Kind is one of "cron" (a cron
// expression with seconds), "every" (fixed interval) or "at" (one
// shot at a wall-clock time).
type Schedule struct {
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
	AtMs    int64  `json:"atMs,omitempty"`
}

// Payload tells the job handler what to do.
type Payload struct {
	Task    string `json:"task"`
	ScoutID string `json:"scoutId,omitempty"`
	Notify  bool   `json:"notify,omitempty"`
}

// JobState records the last execution outcome.
type JobState struct {
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// Job is one persisted scheduled task.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	DeleteAfterRun bool     `json:"deleteAfterRun,omitempty"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
}

func NewJob(name string, schedule Schedule, payload Payload) Job {
	return Job{
		ID:       uuid.NewString(),
		Name:     name,
		Enabled:  true,
		Schedule: schedule,
		Payload:  payload,
	}
}
