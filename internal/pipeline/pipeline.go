// Package pipeline executes the configured external steps for one run.
//
// Steps run strictly in order inside the configured working directory. Each
// step's stdout and stderr are merged and consumed line by line while the
// process runs; the first step exiting non-zero aborts the run and its name
// is reported as the failing step.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"marketcast/internal/config"
	"marketcast/internal/logging"
)

// LineFunc receives one line of merged step output, without the newline.
type LineFunc func(line string)

// Outcome reports how a run ended. Err is nil on success; ErrorStep names
// the step that failed or was interrupted.
type Outcome struct {
	ErrorStep string
	Err       error
}

// Runner executes the pipeline steps for a given profile.
type Runner struct {
	workDir    string
	uploadStep string
	steps      []config.Step
	logger     *slog.Logger
}

// NewRunner builds a runner from the pipeline section of the config.
func NewRunner(cfg config.Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		workDir:    cfg.WorkDir,
		uploadStep: cfg.UploadStep,
		steps:      cfg.Steps,
		logger:     logger,
	}
}

// Run executes every step in order under the given profile. Each output line
// goes to onLine; lines of the upload step additionally go to onUploadLine.
// Either callback may be nil.
func (r *Runner) Run(ctx context.Context, profile string, onLine, onUploadLine LineFunc) Outcome {
	for _, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return Outcome{ErrorStep: step.Name, Err: fmt.Errorf("run canceled: %w", err)}
		}

		lineSink := onLine
		if step.Name == r.uploadStep && onUploadLine != nil {
			capture := onUploadLine
			forward := onLine
			lineSink = func(line string) {
				if forward != nil {
					forward(line)
				}
				capture(line)
			}
		}

		started := time.Now()
		r.logger.Info("step starting",
			logging.String(logging.FieldStep, step.Name),
			logging.String(logging.FieldProfile, profile),
			logging.String("command", strings.Join(step.Command, " ")))

		if err := r.runStep(ctx, step, profile, lineSink); err != nil {
			r.logger.Error("step failed",
				logging.String(logging.FieldStep, step.Name),
				logging.Duration("elapsed", time.Since(started)),
				logging.Error(err))
			return Outcome{ErrorStep: step.Name, Err: err}
		}

		r.logger.Info("step finished",
			logging.String(logging.FieldStep, step.Name),
			logging.Duration("elapsed", time.Since(started)))
	}
	return Outcome{}
}

func (r *Runner) runStep(ctx context.Context, step config.Step, profile string, onLine LineFunc) error {
	if len(step.Command) == 0 {
		return fmt.Errorf("step %q has no command", step.Name)
	}

	cmd := exec.CommandContext(ctx, step.Command[0], step.Command[1:]...)
	cmd.Dir = r.workDir
	cmd.Env = mergeEnv(os.Environ(), step.Env[profile])

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", step.Command[0], err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("step %q: %w", step.Name, err)
	}
	if scanErr != nil {
		return fmt.Errorf("read step output: %w", scanErr)
	}
	return nil
}

// mergeEnv overlays the per-profile overrides on the inherited environment.
// Later entries win for duplicate names, so overrides are simply appended.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	out = append(out, base...)
	for name, value := range overrides {
		out = append(out, name+"="+value)
	}
	return out
}
