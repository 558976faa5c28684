// Package state persists the lifecycle record of the most recent pipeline
// run.
//
// A single RunState document lives at a fixed path inside the runtime
// directory. Every transition overwrites the whole document atomically
// (write-to-temp, rename) so a crash mid-write never leaves a torn record. A
// missing or corrupt file reads back as the default empty state; the
// scheduler and orchestrator must keep working when history is gone.
package state

import (
	"time"

	"marketcast/internal/uploads"
)

// Status is the lifecycle state of the last run.
type Status string

const (
	StatusIdle                  Status = "idle"
	StatusRunning               Status = "running"
	StatusSuccess               Status = "success"
	StatusFailed                Status = "failed"
	StatusSkippedAlreadyRunning Status = "skipped_already_running"
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerForce    Trigger = "force"
)

// RunState is the persisted record of the last pipeline run.
//
// While status is "running" the advisory run lock is held; finding "running"
// on daemon start with the lock acquirable means the previous process died
// mid-run.
type RunState struct {
	Status     Status     `json:"status"`
	RunID      string     `json:"run_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	StartedBy  Trigger    `json:"started_by,omitempty"`
	Forced     bool       `json:"forced,omitempty"`
	Profile    string     `json:"profile,omitempty"`
	ErrorStep  string     `json:"error_step,omitempty"`

	// PendingSlot/PendingRunKey record the schedule opportunity claimed
	// before execution started; cleared on success.
	PendingSlot   *int   `json:"pending_slot,omitempty"`
	PendingRunKey string `json:"pending_run_key,omitempty"`

	// Dedup keys: once a run key succeeds, the scheduler refuses to start
	// it again.
	LastSuccessRunKey string `json:"last_success_run_key,omitempty"`
	LastSuccessDate   string `json:"last_success_date,omitempty"`

	// Uploads is the bounded, most-recent-first history of parsed upload
	// results.
	Uploads []uploads.Result `json:"uploads,omitempty"`
}

// Default returns the empty state a fresh install starts from.
func Default() RunState {
	return RunState{Status: StatusIdle}
}
