package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Service contains identity and access settings for the daemon.
type Service struct {
	TimeZone   string `toml:"time_zone"`
	RuntimeDir string `toml:"runtime_dir"`
	Bind       string `toml:"bind"`
	Token      string `toml:"token"`
	AllowForce bool   `toml:"allow_force"`
}

// Slot maps a minute offset within the scheduled hour to an execution profile.
type Slot struct {
	Minute  int    `toml:"minute"`
	Profile string `toml:"profile"`
}

// Schedule describes when the pipeline is eligible to run.
type Schedule struct {
	Hour          int      `toml:"hour"`
	WindowMinutes int      `toml:"window_minutes"`
	Weekdays      []string `toml:"weekdays"`
	Slots         []Slot   `toml:"slots"`
}

// Step is one pipeline stage: an external command plus per-profile
// environment overrides (profile name -> variable -> value).
type Step struct {
	Name    string                       `toml:"name"`
	Command []string                     `toml:"command"`
	Env     map[string]map[string]string `toml:"env"`
}

// Pipeline describes the ordered external commands the daemon runs.
type Pipeline struct {
	WorkDir    string `toml:"work_dir"`
	UploadStep string `toml:"upload_step"`
	Steps      []Step `toml:"steps"`
}

// RunLog bounds the pipeline output log and its tail reads.
type RunLog struct {
	MaxBytes      int64 `toml:"max_bytes"`
	TailReadBytes int64 `toml:"tail_read_bytes"`
	DefaultLines  int   `toml:"default_lines"`
	MinLines      int   `toml:"min_lines"`
	MaxLines      int   `toml:"max_lines"`
}

// History configures the SQLite run archive.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for the process log.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   bool   `toml:"file"`
}

// Config encapsulates all configuration values for marketcast.
type Config struct {
	Service  Service  `toml:"service"`
	Schedule Schedule `toml:"schedule"`
	Pipeline Pipeline `toml:"pipeline"`
	RunLog   RunLog   `toml:"run_log"`
	History  History  `toml:"history"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/marketcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Slice-valued sections are cleared before decoding so file values
		// replace the defaults instead of merging with them; sections the
		// file omits get their defaults back afterwards.
		defaults := Default()
		cfg.Schedule.Weekdays = nil
		cfg.Schedule.Slots = nil
		cfg.Pipeline.Steps = nil

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}

		if len(cfg.Schedule.Weekdays) == 0 {
			cfg.Schedule.Weekdays = defaults.Schedule.Weekdays
		}
		if len(cfg.Schedule.Slots) == 0 {
			cfg.Schedule.Slots = defaults.Schedule.Slots
		}
		if len(cfg.Pipeline.Steps) == 0 {
			cfg.Pipeline.Steps = defaults.Pipeline.Steps
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("marketcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the runtime directory holding state, lock, and
// log artifacts.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Service.RuntimeDir, 0o755); err != nil {
		return fmt.Errorf("create runtime directory %q: %w", c.Service.RuntimeDir, err)
	}
	return nil
}

// StatePath is the persisted RunState document.
func (c *Config) StatePath() string {
	return filepath.Join(c.Service.RuntimeDir, "state.json")
}

// LockPath is the advisory lock file guarding pipeline execution.
func (c *Config) LockPath() string {
	return filepath.Join(c.Service.RuntimeDir, "run.lock")
}

// RunLogPath is the bounded pipeline output log.
func (c *Config) RunLogPath() string {
	return filepath.Join(c.Service.RuntimeDir, "last_run.log")
}

// HistoryPath is the SQLite run archive.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Service.RuntimeDir, "history.db")
}

// ProcessLogPath is the daemon's own log file.
func (c *Config) ProcessLogPath() string {
	return filepath.Join(c.Service.RuntimeDir, "marketcastd.log")
}

// StepByName returns the configured step with the given name, or nil.
func (c *Config) StepByName(name string) *Step {
	for i := range c.Pipeline.Steps {
		if c.Pipeline.Steps[i].Name == name {
			return &c.Pipeline.Steps[i]
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
