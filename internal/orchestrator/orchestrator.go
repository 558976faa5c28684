// Package orchestrator coordinates scheduling, locking, state, and pipeline
// execution.
//
// One Service instance owns the full run lifecycle: the schedule loop asks
// the planner whether a slot is open, trigger requests from the HTTP surface
// go through the same path, and at most one run is in flight at a time. Run
// execution happens on a background goroutine; triggering is a non-blocking
// handoff that reports whether a run started and why not otherwise.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketcast/internal/clock"
	"marketcast/internal/config"
	"marketcast/internal/history"
	"marketcast/internal/logging"
	"marketcast/internal/pipeline"
	"marketcast/internal/runlock"
	"marketcast/internal/runlog"
	"marketcast/internal/schedule"
	"marketcast/internal/state"
	"marketcast/internal/uploads"
)

// Trigger reasons produced on top of the planner's own. These are part of
// the HTTP response contract.
const (
	ReasonAlreadyRunning = "already_running"
	ReasonForceDisabled  = "force_disabled"
	ReasonUnknownProfile = "unknown_profile"
	ReasonForced         = "forced"
)

// ErrorStepInterrupted marks runs found dead after a daemon crash.
const ErrorStepInterrupted = "interrupted"

// scheduleTickInterval is how often the loop re-evaluates the schedule. It
// must stay well under the smallest slot window (one minute).
const scheduleTickInterval = 15 * time.Second

// TriggerResult reports the outcome of one trigger attempt.
type TriggerResult struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason"`
	RunID   string `json:"run_id,omitempty"`
	Profile string `json:"profile,omitempty"`
	Slot    *int   `json:"slot,omitempty"`
	RunKey  string `json:"run_key,omitempty"`
}

// Deps carries everything a Service needs. Runner and Locker are interfaces
// only where tests need substitutes.
type Deps struct {
	Config  *config.Config
	Clock   clock.Clock
	Store   *state.Store
	Locker  runlock.Locker
	Sink    *runlog.Sink
	Runner  *pipeline.Runner
	History *history.Store
	Logger  *slog.Logger
}

// Service is the run coordinator.
type Service struct {
	cfg     *config.Config
	clock   clock.Clock
	store   *state.Store
	locker  runlock.Locker
	sink    *runlog.Sink
	runner  *pipeline.Runner
	history *history.Store
	logger  *slog.Logger

	plannerMu sync.RWMutex
	planner   *schedule.Planner

	mu     sync.Mutex
	active bool

	runCtx context.Context
	wg     sync.WaitGroup
}

// New builds a Service. Call Start before serving triggers.
func New(deps Deps) *Service {
	svc := &Service{
		cfg:     deps.Config,
		clock:   deps.Clock,
		store:   deps.Store,
		locker:  deps.Locker,
		sink:    deps.Sink,
		runner:  deps.Runner,
		history: deps.History,
		logger:  logging.NewComponentLogger(deps.Logger, "orchestrator"),
		planner: schedule.NewPlanner(deps.Config.Schedule),
	}
	svc.runCtx = context.Background()
	return svc
}

// Start performs crash recovery and launches the schedule loop. The loop
// stops when ctx is canceled; Wait blocks until any in-flight run finished.
func (s *Service) Start(ctx context.Context) {
	s.runCtx = ctx
	s.recover()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Wait blocks until the schedule loop and any in-flight run have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// UpdateSchedule swaps in a new planner, applied on the next evaluation.
func (s *Service) UpdateSchedule(cfg config.Schedule) {
	planner := schedule.NewPlanner(cfg)
	s.plannerMu.Lock()
	s.planner = planner
	s.plannerMu.Unlock()
	s.logger.Info("schedule updated",
		logging.Int("hour", planner.Hour()),
		logging.Int("window_minutes", planner.WindowMinutes()),
		logging.Int("slots", len(planner.Slots())))
}

func (s *Service) currentPlanner() *schedule.Planner {
	s.plannerMu.RLock()
	defer s.plannerMu.RUnlock()
	return s.planner
}

// recover repairs state left behind by a process that died mid-run. A
// persisted "running" status with an acquirable lock means no run survived.
func (s *Service) recover() {
	runState := s.store.Read()
	if runState.Status != state.StatusRunning {
		return
	}

	acquired, err := s.locker.TryLock()
	if err != nil {
		s.logger.Warn("crash recovery lock probe failed", logging.Error(err))
		return
	}
	if !acquired {
		// Another process is legitimately mid-run.
		return
	}
	defer func() { _ = s.locker.Unlock() }()

	now := s.clock.Now()
	updated, err := s.store.Update(func(rs *state.RunState) {
		rs.Status = state.StatusFailed
		rs.ErrorStep = ErrorStepInterrupted
		rs.FinishedAt = &now
	})
	if err != nil {
		s.logger.Error("crash recovery state write failed", logging.Error(err))
		return
	}
	s.logger.Warn("recovered interrupted run",
		logging.String(logging.FieldRunID, updated.RunID),
		logging.String("run_key", updated.PendingRunKey))

	if err := s.history.RecordFinish(s.runCtx, updated, nil); err != nil {
		s.logger.Warn("archive interrupted run failed", logging.Error(err))
	}
}

// loop evaluates the schedule on a fixed tick.
func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(scheduleTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := s.TriggerScheduled()
			if result.Started {
				s.logger.Info("scheduled run started",
					logging.String(logging.FieldRunID, result.RunID),
					logging.String(logging.FieldProfile, result.Profile),
					logging.String("run_key", result.RunKey))
			}
		}
	}
}

// TriggerScheduled evaluates the schedule and starts a run when a slot is
// open and not already satisfied.
func (s *Service) TriggerScheduled() TriggerResult {
	now := s.clock.Now()
	decision := s.currentPlanner().ShouldRun(now, s.store.Read())
	if !decision.Start {
		return resultFromDecision(decision)
	}
	return s.launch(state.TriggerSchedule, false, decision)
}

// TriggerManual serves explicit run requests. Without force it follows the
// same eligibility rules as the schedule loop; with force it starts
// regardless of window and dedup, subject to the allow_force setting.
// profileOverride selects the execution profile for forced runs; empty means
// the matched slot's profile, falling back to the normal profile.
func (s *Service) TriggerManual(force bool, profileOverride string) TriggerResult {
	now := s.clock.Now()
	planner := s.currentPlanner()
	decision := planner.ShouldRun(now, s.store.Read())

	if !force {
		// An unforced request is a schedule evaluation that happens to
		// arrive over HTTP; provenance stays "schedule".
		if !decision.Start {
			return resultFromDecision(decision)
		}
		return s.launch(state.TriggerSchedule, false, decision)
	}

	if !s.cfg.Service.AllowForce {
		return TriggerResult{Reason: ReasonForceDisabled}
	}
	if profileOverride != "" && profileOverride != config.ProfileShort && profileOverride != config.ProfileNormal {
		return TriggerResult{Reason: ReasonUnknownProfile}
	}

	forced := decision
	forced.Start = true
	forced.Reason = ReasonForced
	if profileOverride != "" {
		forced.Profile = profileOverride
	}
	if forced.Profile == "" {
		forced.Profile = config.ProfileNormal
	}
	return s.launch(state.TriggerForce, true, forced)
}

// launch claims the in-process run slot and hands execution to a background
// goroutine. Cross-process exclusion happens inside the goroutine via the
// file lock; its failure surfaces through state, not through this result.
func (s *Service) launch(trigger state.Trigger, forced bool, decision schedule.Decision) TriggerResult {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return TriggerResult{Reason: ReasonAlreadyRunning}
	}
	s.active = true
	s.mu.Unlock()

	runID := uuid.New().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
		}()
		s.runJob(runID, trigger, forced, decision)
	}()

	result := resultFromDecision(decision)
	result.Started = true
	result.RunID = runID
	return result
}

// runJob executes one pipeline run end to end and owns every state
// transition along the way.
func (s *Service) runJob(runID string, trigger state.Trigger, forced bool, decision schedule.Decision) {
	logger := s.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldProfile, decision.Profile))

	acquired, err := s.locker.TryLock()
	if err != nil {
		logger.Error("run lock acquisition failed", logging.Error(err))
		s.finishWithStatus(runID, state.StatusFailed, "lock")
		return
	}
	if !acquired {
		logger.Info("run skipped",
			logging.String(logging.FieldReason, string(state.StatusSkippedAlreadyRunning)))
		now := s.clock.Now()
		skipped, updErr := s.store.Update(func(rs *state.RunState) {
			rs.Status = state.StatusSkippedAlreadyRunning
			rs.RunID = runID
			rs.StartedAt = &now
			rs.FinishedAt = &now
			rs.StartedBy = trigger
			rs.Forced = forced
			rs.Profile = decision.Profile
			rs.ErrorStep = ""
		})
		if updErr == nil {
			// The archive row carries this attempt's slot key; the state
			// record's pending claim belongs to the run holding the lock.
			skipped.PendingRunKey = decision.RunKey
			if err := s.history.RecordStart(s.runCtx, skipped); err != nil {
				logger.Warn("archive skipped run failed", logging.Error(err))
			} else if err := s.history.RecordFinish(s.runCtx, skipped, nil); err != nil {
				logger.Warn("archive skipped run failed", logging.Error(err))
			}
		}
		return
	}
	defer func() { _ = s.locker.Unlock() }()

	startedAt := s.clock.Now()
	running, err := s.store.Update(func(rs *state.RunState) {
		rs.Status = state.StatusRunning
		rs.RunID = runID
		rs.StartedAt = &startedAt
		rs.FinishedAt = nil
		rs.StartedBy = trigger
		rs.Forced = forced
		rs.Profile = decision.Profile
		rs.ErrorStep = ""
		if decision.RunKey != "" {
			slot := decision.Slot
			rs.PendingSlot = &slot
			rs.PendingRunKey = decision.RunKey
		} else {
			rs.PendingSlot = nil
			rs.PendingRunKey = ""
		}
	})
	if err != nil {
		logger.Error("state write failed, aborting run", logging.Error(err))
		return
	}
	if err := s.history.RecordStart(s.runCtx, running); err != nil {
		logger.Warn("archive run start failed", logging.Error(err))
	}

	logger.Info("run starting",
		logging.String("trigger", string(trigger)),
		logging.Bool("forced", forced),
		logging.String("run_key", decision.RunKey))

	collector := uploads.NewCollector(s.clock.Now)
	outcome := s.runner.Run(s.runCtx, decision.Profile, s.appendLogLine, collector.Consume)

	finishedAt := s.clock.Now()
	results := collector.Results()

	final, stateErr := s.store.Update(func(rs *state.RunState) {
		rs.FinishedAt = &finishedAt
		for _, result := range results {
			rs.Uploads = uploads.Prepend(rs.Uploads, result, uploads.MaxHistory)
		}
		if outcome.Err != nil {
			rs.Status = state.StatusFailed
			rs.ErrorStep = outcome.ErrorStep
			return
		}
		rs.Status = state.StatusSuccess
		rs.ErrorStep = ""
		if rs.PendingRunKey != "" {
			rs.LastSuccessRunKey = rs.PendingRunKey
			rs.LastSuccessDate = finishedAt.Format("2006-01-02")
		}
		rs.PendingSlot = nil
		rs.PendingRunKey = ""
	})
	if stateErr != nil {
		logger.Error("final state write failed", logging.Error(stateErr))
	}
	if err := s.history.RecordFinish(s.runCtx, final, results); err != nil {
		logger.Warn("archive run finish failed", logging.Error(err))
	}

	if outcome.Err != nil {
		logger.Error("run failed",
			logging.String(logging.FieldStep, outcome.ErrorStep),
			logging.Duration("elapsed", finishedAt.Sub(startedAt)),
			logging.Error(outcome.Err))
		return
	}
	logger.Info("run succeeded",
		logging.Duration("elapsed", finishedAt.Sub(startedAt)),
		logging.Int("uploads", len(results)))
}

// finishWithStatus records a terminal status outside the normal run path.
func (s *Service) finishWithStatus(runID string, status state.Status, errorStep string) {
	now := s.clock.Now()
	_, _ = s.store.Update(func(rs *state.RunState) {
		rs.Status = status
		rs.RunID = runID
		rs.ErrorStep = errorStep
		rs.FinishedAt = &now
	})
}

func (s *Service) appendLogLine(line string) {
	if err := s.sink.Append(line); err != nil {
		s.logger.Warn("run log append failed", logging.Error(err))
	}
	s.logger.Debug("pipeline output", logging.String("line", line))
}

func resultFromDecision(decision schedule.Decision) TriggerResult {
	result := TriggerResult{
		Reason:  decision.Reason,
		Profile: decision.Profile,
		RunKey:  decision.RunKey,
	}
	if decision.RunKey != "" {
		slot := decision.Slot
		result.Slot = &slot
	}
	return result
}
