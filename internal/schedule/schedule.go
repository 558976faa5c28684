// Package schedule decides whether a pipeline run is due.
//
// Eligibility is evaluated against configured weekdays, one scheduled hour,
// and a sorted set of minute slots, each opening a window of configured
// width. Every slot maps to an execution profile through configuration data;
// a matched slot yields a run key (date + hour + slot minute) used to keep
// each opportunity at-most-once across process restarts.
package schedule

import (
	"fmt"
	"time"

	"marketcast/internal/config"
	"marketcast/internal/state"
)

// Reason strings returned with every decision. These are part of the HTTP
// response contract.
const (
	ReasonOutsideSchedule = "outside_schedule"
	ReasonAlreadyRan      = "already_ran_this_slot"
	ReasonOK              = "ok_to_run"
)

// Decision is the outcome of one eligibility check.
type Decision struct {
	Start   bool
	Reason  string
	Slot    int
	RunKey  string
	Profile string
}

// Planner evaluates run windows. It is immutable; config reloads swap in a
// new Planner.
type Planner struct {
	hour     int
	window   int
	weekdays map[time.Weekday]bool
	slots    []config.Slot
}

// NewPlanner builds a planner from the schedule section of the config.
// Slots are expected sorted by minute (config normalization guarantees it).
func NewPlanner(cfg config.Schedule) *Planner {
	window := cfg.WindowMinutes
	if window < 1 {
		window = 1
	}
	slots := make([]config.Slot, len(cfg.Slots))
	copy(slots, cfg.Slots)
	return &Planner{
		hour:     cfg.Hour,
		window:   window,
		weekdays: cfg.WeekdaySet(),
		slots:    slots,
	}
}

// ShouldRun decides whether a run is due at now given the persisted state.
// It never mutates state; claiming the pending slot is the caller's job.
func (p *Planner) ShouldRun(now time.Time, runState state.RunState) Decision {
	slot, ok := p.matchSlot(now)
	if !ok {
		return Decision{Reason: ReasonOutsideSchedule}
	}

	key := RunKey(now, p.hour, slot.Minute)
	if runState.LastSuccessRunKey == key {
		return Decision{
			Reason:  ReasonAlreadyRan,
			Slot:    slot.Minute,
			RunKey:  key,
			Profile: slot.Profile,
		}
	}

	return Decision{
		Start:   true,
		Reason:  ReasonOK,
		Slot:    slot.Minute,
		RunKey:  key,
		Profile: slot.Profile,
	}
}

// ProfileFor returns the profile configured for a slot minute, or the normal
// profile when the minute is unknown (forced runs without a slot).
func (p *Planner) ProfileFor(slotMinute int) string {
	for _, slot := range p.slots {
		if slot.Minute == slotMinute {
			return slot.Profile
		}
	}
	return config.ProfileNormal
}

// Hour returns the scheduled hour, used for status reporting.
func (p *Planner) Hour() int { return p.hour }

// WindowMinutes returns the slot window width.
func (p *Planner) WindowMinutes() int { return p.window }

// Slots returns the configured slots in minute order.
func (p *Planner) Slots() []config.Slot {
	out := make([]config.Slot, len(p.slots))
	copy(out, p.slots)
	return out
}

func (p *Planner) matchSlot(now time.Time) (config.Slot, bool) {
	if !p.weekdays[now.Weekday()] {
		return config.Slot{}, false
	}
	if now.Hour() != p.hour {
		return config.Slot{}, false
	}
	minute := now.Minute()
	for _, slot := range p.slots {
		if minute >= slot.Minute && minute < slot.Minute+p.window {
			return slot, true
		}
	}
	return config.Slot{}, false
}

// RunKey derives the composite identity of one scheduling opportunity.
func RunKey(now time.Time, hour, slotMinute int) string {
	return fmt.Sprintf("%s@%02d:%02d", now.Format("2006-01-02"), hour, slotMinute)
}
