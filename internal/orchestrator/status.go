package orchestrator

import (
	"context"
	"time"

	"marketcast/internal/config"
	"marketcast/internal/history"
	"marketcast/internal/state"
)

// SlotEcho is one configured slot as reported by /status.
type SlotEcho struct {
	Minute  int    `json:"minute"`
	Profile string `json:"profile"`
}

// ScheduleEcho mirrors the active schedule configuration.
type ScheduleEcho struct {
	Hour          int        `json:"hour"`
	WindowMinutes int        `json:"window_minutes"`
	Weekdays      []string   `json:"weekdays"`
	Slots         []SlotEcho `json:"slots"`
}

// StatusReport is the full picture returned by the status surface: the
// daemon's view of time and schedule plus the persisted run state.
type StatusReport struct {
	Now        time.Time      `json:"now"`
	TimeZone   string         `json:"time_zone"`
	AllowForce bool           `json:"allow_force"`
	LogPath    string         `json:"log_path"`
	Schedule   ScheduleEcho   `json:"schedule"`
	State      state.RunState `json:"state"`
}

// Status assembles the current status report.
func (s *Service) Status() StatusReport {
	planner := s.currentPlanner()

	slots := make([]SlotEcho, 0, len(planner.Slots()))
	for _, slot := range planner.Slots() {
		slots = append(slots, SlotEcho{Minute: slot.Minute, Profile: slot.Profile})
	}

	return StatusReport{
		Now:        s.clock.Now(),
		TimeZone:   s.cfg.Service.TimeZone,
		AllowForce: s.cfg.Service.AllowForce,
		LogPath:    s.sink.Path(),
		Schedule: ScheduleEcho{
			Hour:          planner.Hour(),
			WindowMinutes: planner.WindowMinutes(),
			Weekdays:      s.cfg.Schedule.Weekdays,
			Slots:         slots,
		},
		State: s.store.Read(),
	}
}

// TailLog returns the most recent run log lines. A non-positive n selects
// the configured default; the result is clamped to the configured bounds.
func (s *Service) TailLog(n int) ([]string, error) {
	bounds := s.cfg.RunLog
	if n <= 0 {
		n = bounds.DefaultLines
	}
	n = clamp(n, bounds.MinLines, bounds.MaxLines)
	return s.sink.Tail(n)
}

// Runs lists archived runs, newest first. Returns nil when the archive is
// disabled.
func (s *Service) Runs(ctx context.Context, limit int) ([]history.Run, error) {
	return s.history.ListRuns(ctx, limit)
}

// Profiles returns the known execution profile names.
func (s *Service) Profiles() []string {
	return []string{config.ProfileShort, config.ProfileNormal}
}

func clamp(n, min, max int) int {
	if min > 0 && n < min {
		return min
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
