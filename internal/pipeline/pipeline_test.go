package pipeline_test

import (
	"context"
	"testing"

	"marketcast/internal/config"
	"marketcast/internal/pipeline"
	"marketcast/internal/testsupport"
)

func TestRunExecutesStepsInOrder(t *testing.T) {
	dir := t.TempDir()
	steps := []config.Step{
		testsupport.ScriptStep(t, dir, "first", `echo "from first"`),
		testsupport.ScriptStep(t, dir, "second", `echo "from second"`),
	}
	runner := pipeline.NewRunner(config.Pipeline{WorkDir: dir, Steps: steps}, nil)

	var lines []string
	outcome := runner.Run(context.Background(), config.ProfileNormal, func(line string) {
		lines = append(lines, line)
	}, nil)
	if outcome.Err != nil {
		t.Fatalf("run failed: %v (step %q)", outcome.Err, outcome.ErrorStep)
	}
	if len(lines) != 2 || lines[0] != "from first" || lines[1] != "from second" {
		t.Fatalf("unexpected output: %v", lines)
	}
}

func TestRunAbortsOnFailingStep(t *testing.T) {
	dir := t.TempDir()
	steps := []config.Step{
		testsupport.ScriptStep(t, dir, "ok", `echo "ran"`),
		testsupport.ScriptStep(t, dir, "boom", `echo "about to fail"; exit 3`),
		testsupport.ScriptStep(t, dir, "never", `echo "must not run"`),
	}
	runner := pipeline.NewRunner(config.Pipeline{WorkDir: dir, Steps: steps}, nil)

	var lines []string
	outcome := runner.Run(context.Background(), config.ProfileNormal, func(line string) {
		lines = append(lines, line)
	}, nil)
	if outcome.Err == nil {
		t.Fatal("expected run to fail")
	}
	if outcome.ErrorStep != "boom" {
		t.Fatalf("wrong failing step: %q", outcome.ErrorStep)
	}
	for _, line := range lines {
		if line == "must not run" {
			t.Fatal("step after failure still executed")
		}
	}
}

func TestRunAppliesProfileEnv(t *testing.T) {
	dir := t.TempDir()
	step := testsupport.ScriptStep(t, dir, "env_probe", `echo "short=$GENERATE_SHORT_VIDEO full=$GENERATE_FULL_VIDEO"`)
	step.Env = map[string]map[string]string{
		config.ProfileShort:  {"GENERATE_SHORT_VIDEO": "1", "GENERATE_FULL_VIDEO": "0"},
		config.ProfileNormal: {"GENERATE_SHORT_VIDEO": "0", "GENERATE_FULL_VIDEO": "1"},
	}
	runner := pipeline.NewRunner(config.Pipeline{WorkDir: dir, Steps: []config.Step{step}}, nil)

	var lines []string
	outcome := runner.Run(context.Background(), config.ProfileShort, func(line string) {
		lines = append(lines, line)
	}, nil)
	if outcome.Err != nil {
		t.Fatalf("run failed: %v", outcome.Err)
	}
	if len(lines) != 1 || lines[0] != "short=1 full=0" {
		t.Fatalf("profile env not applied: %v", lines)
	}
}

func TestRunCapturesStderr(t *testing.T) {
	dir := t.TempDir()
	step := testsupport.ScriptStep(t, dir, "noisy", `echo "to stderr" 1>&2`)
	runner := pipeline.NewRunner(config.Pipeline{WorkDir: dir, Steps: []config.Step{step}}, nil)

	var lines []string
	outcome := runner.Run(context.Background(), config.ProfileNormal, func(line string) {
		lines = append(lines, line)
	}, nil)
	if outcome.Err != nil {
		t.Fatalf("run failed: %v", outcome.Err)
	}
	if len(lines) != 1 || lines[0] != "to stderr" {
		t.Fatalf("stderr not merged into stream: %v", lines)
	}
}

func TestRunRoutesUploadStepOutput(t *testing.T) {
	dir := t.TempDir()
	steps := []config.Step{
		testsupport.ScriptStep(t, dir, "build", `echo "building"`),
		testsupport.ScriptStep(t, dir, "upload", `echo "UPLOAD_RESULT kind=short id=abc123"`),
	}
	runner := pipeline.NewRunner(config.Pipeline{
		WorkDir:    dir,
		UploadStep: "upload",
		Steps:      steps,
	}, nil)

	var all, uploadOnly []string
	outcome := runner.Run(context.Background(), config.ProfileShort,
		func(line string) { all = append(all, line) },
		func(line string) { uploadOnly = append(uploadOnly, line) })
	if outcome.Err != nil {
		t.Fatalf("run failed: %v", outcome.Err)
	}
	if len(all) != 2 {
		t.Fatalf("full stream incomplete: %v", all)
	}
	if len(uploadOnly) != 1 || uploadOnly[0] != "UPLOAD_RESULT kind=short id=abc123" {
		t.Fatalf("upload stream wrong: %v", uploadOnly)
	}
}

func TestRunCanceledContext(t *testing.T) {
	dir := t.TempDir()
	step := testsupport.ScriptStep(t, dir, "sleepy", `sleep 30`)
	runner := pipeline.NewRunner(config.Pipeline{WorkDir: dir, Steps: []config.Step{step}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := runner.Run(ctx, config.ProfileNormal, nil, nil)
	if outcome.Err == nil {
		t.Fatal("expected canceled run to fail")
	}
	if outcome.ErrorStep != "sleepy" {
		t.Fatalf("wrong failing step: %q", outcome.ErrorStep)
	}
}
