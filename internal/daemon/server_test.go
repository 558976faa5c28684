package daemon_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketcast/internal/clock"
	"marketcast/internal/daemon"
	"marketcast/internal/orchestrator"
	"marketcast/internal/pipeline"
	"marketcast/internal/runlock"
	"marketcast/internal/runlog"
	"marketcast/internal/schedule"
	"marketcast/internal/state"
	"marketcast/internal/testsupport"
)

// noon on a Monday, outside every default slot.
var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Server, *runlog.Sink) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	sink := runlog.New(cfg.RunLogPath(), cfg.RunLog.MaxBytes, cfg.RunLog.TailReadBytes)
	service := orchestrator.New(orchestrator.Deps{
		Config:  cfg,
		Clock:   clock.Fixed{Time: testNow},
		Store:   state.NewStore(cfg.StatePath()),
		Locker:  runlock.NewMemory(),
		Sink:    sink,
		Runner:  pipeline.NewRunner(cfg.Pipeline, nil),
		History: nil,
		Logger:  nil,
	})
	return daemon.NewServer(cfg, service, nil), sink
}

func doRequest(t *testing.T, server *daemon.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !payload["ok"] {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestStatusEndpointIsPublic(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var report orchestrator.StatusReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if report.Schedule.Hour != 7 || len(report.Schedule.Slots) != 2 {
		t.Fatalf("schedule echo wrong: %#v", report.Schedule)
	}
	if report.State.Status != state.StatusIdle {
		t.Fatalf("fresh daemon should be idle: %#v", report.State)
	}
}

func TestRunRequiresToken(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "/run")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must 401, got %d", rec.Code)
	}

	rec = doRequest(t, server, "/run?token=wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token must 401, got %d", rec.Code)
	}
}

func TestRunOutsideScheduleReturnsEnvelope(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "/run?token=test-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("refusals ride a 200 envelope, got %d", rec.Code)
	}
	var result orchestrator.TriggerResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode run result: %v", err)
	}
	if result.Started {
		t.Fatal("run must not start outside the window")
	}
	if result.Reason != schedule.ReasonOutsideSchedule {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestRunForceDisabled(t *testing.T) {
	server, _ := newTestServer(t, testsupport.WithAllowForce(false))

	rec := doRequest(t, server, "/run?token=test-token&force=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var result orchestrator.TriggerResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode run result: %v", err)
	}
	if result.Started {
		t.Fatal("forced run must be refused when disabled")
	}
	if result.Reason != orchestrator.ReasonForceDisabled {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestLogEndpointClampsLineCount(t *testing.T) {
	server, sink := newTestServer(t)

	for i := 0; i < 15; i++ {
		if err := sink.Append(fmt.Sprintf("line-%02d", i)); err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}

	// n=2 is below the configured floor of 10 lines and gets clamped up.
	rec := doRequest(t, server, "/log?token=test-token&n=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 clamped lines, got %d: %v", len(lines), lines)
	}
	if lines[len(lines)-1] != "line-14" {
		t.Fatalf("most recent line missing: %v", lines)
	}
}

func TestLogRequiresToken(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "/log")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must 401, got %d", rec.Code)
	}
}

func TestRunsEndpointWithoutArchive(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "/runs?token=test-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload struct {
		Runs []json.RawMessage `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(payload.Runs) != 0 {
		t.Fatalf("expected empty archive, got %d entries", len(payload.Runs))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/run?token=test-token", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST must be rejected, got %d", rec.Code)
	}
}
