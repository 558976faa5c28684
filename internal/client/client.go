// Package client is the HTTP client the CLI uses to talk to a running
// daemon.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketcast/internal/history"
	"marketcast/internal/orchestrator"
)

// Client talks to one daemon instance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for the daemon at baseURL (e.g. "http://127.0.0.1:8787").
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health reports whether the daemon answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	var payload struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "/health", nil, &payload); err != nil {
		return err
	}
	if !payload.OK {
		return fmt.Errorf("daemon reports unhealthy")
	}
	return nil
}

// Status fetches the daemon status report.
func (c *Client) Status(ctx context.Context) (orchestrator.StatusReport, error) {
	var report orchestrator.StatusReport
	err := c.getJSON(ctx, "/status", nil, &report)
	return report, err
}

// Run requests a pipeline run. profile may be empty.
func (c *Client) Run(ctx context.Context, force bool, profile string) (orchestrator.TriggerResult, error) {
	params := url.Values{}
	if force {
		params.Set("force", "1")
	}
	if profile != "" {
		params.Set("slot", profile)
	}
	var result orchestrator.TriggerResult
	err := c.getJSON(ctx, "/run", params, &result)
	return result, err
}

// Log fetches the most recent run log lines. n <= 0 selects the daemon's
// default.
func (c *Client) Log(ctx context.Context, n int) ([]string, error) {
	params := url.Values{}
	if n > 0 {
		params.Set("n", strconv.Itoa(n))
	}
	resp, err := c.get(ctx, "/log", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log response: %w", err)
	}
	return lines, nil
}

// Runs lists archived runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]history.Run, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var payload struct {
		Runs []history.Run `json:"runs"`
	}
	if err := c.getJSON(ctx, "/runs", params, &payload); err != nil {
		return nil, err
	}
	return payload.Runs, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	if params == nil {
		params = url.Values{}
	}
	if c.token != "" {
		params.Set("token", c.token)
	}
	endpoint := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact daemon: %w", err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
