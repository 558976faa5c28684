// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"marketcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Service.RuntimeDir = filepath.Join(base, "runtime")
	cfgVal.Service.Bind = "127.0.0.1:0"
	cfgVal.Service.Token = "test-token"
	cfgVal.Pipeline.WorkDir = base
	cfgVal.History.Enabled = false
	cfgVal.Logging.File = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("ensure runtime dir: %v", err)
	}
	return builder.cfg
}

// WithToken overrides the API token on the test config.
func WithToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.Token = token
	}
}

// WithAllowForce sets whether forced runs are permitted.
func WithAllowForce(allow bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.AllowForce = allow
	}
}

// WithHistory enables the SQLite run archive on the test config.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = true
	}
}

// WithSteps replaces the pipeline step list.
func WithSteps(steps ...config.Step) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Steps = steps
	}
}

// WithUploadStep sets which step's output is scanned for upload markers.
func WithUploadStep(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.UploadStep = name
	}
}

// ScriptStep writes a shell script into the test work dir and returns a step
// executing it. The script body runs under /bin/sh.
func ScriptStep(t testing.TB, dir, name, body string) config.Step {
	t.Helper()

	path := filepath.Join(dir, name+".sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write step script %s: %v", name, err)
	}
	return config.Step{Name: name, Command: []string{"/bin/sh", path}}
}
