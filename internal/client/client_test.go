package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketcast/internal/client"
)

func TestRunSendsTokenAndFlags(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/run" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"started":true,"reason":"forced","run_id":"r1","profile":"short"}`))
	}))
	defer server.Close()

	c := client.New(server.URL, "sekrit")
	result, err := c.Run(context.Background(), true, "short")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Started || result.RunID != "r1" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if got := gotQuery["token"]; len(got) != 1 || got[0] != "sekrit" {
		t.Fatalf("token not sent: %v", gotQuery)
	}
	if got := gotQuery["force"]; len(got) != 1 || got[0] != "1" {
		t.Fatalf("force flag not sent: %v", gotQuery)
	}
	if got := gotQuery["slot"]; len(got) != 1 || got[0] != "short" {
		t.Fatalf("slot not sent: %v", gotQuery)
	}
}

func TestLogParsesPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("one\ntwo\nthree\n"))
	}))
	defer server.Close()

	c := client.New(server.URL, "")
	lines, err := c.Log(context.Background(), 3)
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(lines) != 3 || lines[2] != "three" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestErrorResponsesSurfaceMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer server.Close()

	c := client.New(server.URL, "wrong")
	if _, err := c.Status(context.Background()); err == nil {
		t.Fatal("expected error for 401")
	} else if !strings.Contains(err.Error(), "invalid token") {
		t.Fatalf("error message lost: %v", err)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := client.New(server.URL, "")
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}
