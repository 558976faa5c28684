package uploads_test

import (
	"testing"
	"time"

	"marketcast/internal/uploads"
)

var stamp = time.Date(2026, 8, 24, 7, 12, 0, 0, time.UTC)

func TestParseLineResult(t *testing.T) {
	result, ok := uploads.ParseLine("UPLOAD_RESULT kind=short id=abc123 privacy=public", stamp)
	if !ok {
		t.Fatal("expected a valid marker line")
	}
	if result.Kind != "short" || result.ID != "abc123" || result.Privacy != "public" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.Skipped {
		t.Fatal("result marker must not be skipped")
	}
	if result.URLWatch != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("unexpected watch url: %q", result.URLWatch)
	}
	if result.URLShort != "https://www.youtube.com/shorts/abc123" {
		t.Fatalf("unexpected shorts url: %q", result.URLShort)
	}
	if !result.Timestamp.Equal(stamp) {
		t.Fatalf("unexpected timestamp: %v", result.Timestamp)
	}
}

func TestParseLineSkipped(t *testing.T) {
	result, ok := uploads.ParseLine("UPLOAD_SKIPPED kind=full reason=quota_exceeded", stamp)
	if !ok {
		t.Fatal("expected a valid marker line")
	}
	if !result.Skipped {
		t.Fatal("expected skipped flag")
	}
	if result.Reason != "quota_exceeded" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
	if result.URLWatch != "" {
		t.Fatalf("skipped without id must not carry a url: %q", result.URLWatch)
	}
}

func TestParseLineQuotedValues(t *testing.T) {
	result, ok := uploads.ParseLine(`UPLOAD_SKIPPED kind=full reason="daily quota = 0"`, stamp)
	if !ok {
		t.Fatal("expected a valid marker line")
	}
	if result.Reason != "daily quota = 0" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestParseLineLeadingNoiseTolerated(t *testing.T) {
	result, ok := uploads.ParseLine("  UPLOAD_RESULT kind=full id=zz9 garbage notakey", stamp)
	if !ok {
		t.Fatal("expected a valid marker line")
	}
	if result.ID != "zz9" {
		t.Fatalf("unexpected id: %q", result.ID)
	}
}

func TestParseLineRejectsNonMarkers(t *testing.T) {
	cases := []string{
		"",
		"uploading video...",
		"UPLOAD_RESULTkind=short id=abc",
		"UPLOAD_RESULT kind=short",
	}
	for _, line := range cases {
		if _, ok := uploads.ParseLine(line, stamp); ok {
			t.Fatalf("line %q should not parse", line)
		}
	}
}

func TestPrependBoundsHistory(t *testing.T) {
	var history []uploads.Result
	for i := 0; i < uploads.MaxHistory+5; i++ {
		history = uploads.Prepend(history, uploads.Result{Kind: "short", ID: "id", Timestamp: stamp}, uploads.MaxHistory)
	}
	if len(history) != uploads.MaxHistory {
		t.Fatalf("history not bounded: %d", len(history))
	}
}

func TestPrependKeepsMostRecentFirst(t *testing.T) {
	history := uploads.Prepend(nil, uploads.Result{ID: "first"}, uploads.MaxHistory)
	history = uploads.Prepend(history, uploads.Result{ID: "second"}, uploads.MaxHistory)

	if history[0].ID != "second" || history[1].ID != "first" {
		t.Fatalf("unexpected order: %#v", history)
	}
}

func TestCollectorConsumesOnlyMarkers(t *testing.T) {
	collector := uploads.NewCollector(func() time.Time { return stamp })
	collector.Consume("starting upload")
	collector.Consume("UPLOAD_RESULT kind=short id=abc123")
	collector.Consume("done")
	collector.Consume("UPLOAD_SKIPPED kind=full reason=disabled")

	results := collector.Results()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "abc123" || !results[1].Skipped {
		t.Fatalf("unexpected results: %#v", results)
	}
}
