package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateRunLog(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateService() error {
	if strings.TrimSpace(c.Service.RuntimeDir) == "" {
		return errors.New("service.runtime_dir must be set")
	}
	if strings.TrimSpace(c.Service.Bind) == "" {
		return errors.New("service.bind must be set")
	}
	if c.Service.TimeZone != "" {
		if _, err := time.LoadLocation(c.Service.TimeZone); err != nil {
			return fmt.Errorf("service.time_zone: %w", err)
		}
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return errors.New("schedule.hour must be between 0 and 23")
	}
	if c.Schedule.WindowMinutes < 1 || c.Schedule.WindowMinutes > 60 {
		return errors.New("schedule.window_minutes must be between 1 and 60")
	}
	if len(c.Schedule.Weekdays) == 0 {
		return errors.New("schedule.weekdays must include at least one day")
	}
	for _, name := range c.Schedule.Weekdays {
		if _, ok := weekdayNames[name]; !ok {
			return fmt.Errorf("schedule.weekdays: unknown day %q", name)
		}
	}
	if len(c.Schedule.Slots) == 0 {
		return errors.New("schedule.slots must include at least one slot")
	}
	seen := make(map[int]bool, len(c.Schedule.Slots))
	for _, slot := range c.Schedule.Slots {
		if slot.Minute < 0 || slot.Minute > 59 {
			return fmt.Errorf("schedule.slots: minute %d out of range", slot.Minute)
		}
		if seen[slot.Minute] {
			return fmt.Errorf("schedule.slots: duplicate minute %d", slot.Minute)
		}
		seen[slot.Minute] = true
		if slot.Profile != ProfileShort && slot.Profile != ProfileNormal {
			return fmt.Errorf("schedule.slots: unknown profile %q for minute %d", slot.Profile, slot.Minute)
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if len(c.Pipeline.Steps) == 0 {
		return errors.New("pipeline.steps must include at least one step")
	}
	names := make(map[string]bool, len(c.Pipeline.Steps))
	for _, step := range c.Pipeline.Steps {
		if step.Name == "" {
			return errors.New("pipeline.steps: every step needs a name")
		}
		if names[step.Name] {
			return fmt.Errorf("pipeline.steps: duplicate step %q", step.Name)
		}
		names[step.Name] = true
		if len(step.Command) == 0 {
			return fmt.Errorf("pipeline.steps: step %q has no command", step.Name)
		}
	}
	if c.Pipeline.UploadStep != "" && c.StepByName(c.Pipeline.UploadStep) == nil {
		return fmt.Errorf("pipeline.upload_step %q does not match any step", c.Pipeline.UploadStep)
	}
	return nil
}

func (c *Config) validateRunLog() error {
	if c.RunLog.MaxBytes <= 0 {
		return errors.New("run_log.max_bytes must be positive")
	}
	if c.RunLog.TailReadBytes <= 0 {
		return errors.New("run_log.tail_read_bytes must be positive")
	}
	if c.RunLog.MinLines < 1 {
		return errors.New("run_log.min_lines must be >= 1")
	}
	if c.RunLog.MaxLines < c.RunLog.MinLines {
		return errors.New("run_log.max_lines must be >= run_log.min_lines")
	}
	if c.RunLog.DefaultLines < c.RunLog.MinLines || c.RunLog.DefaultLines > c.RunLog.MaxLines {
		return errors.New("run_log.default_lines must fall within min_lines..max_lines")
	}
	return nil
}
