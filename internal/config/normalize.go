package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Environment overrides recognized in addition to the TOML file. The names
// follow the original deployment environment so existing container configs
// keep working.
const (
	envToken         = "RUN_TOKEN"
	envTimeZone      = "TZ"
	envRunHour       = "RUN_HOUR"
	envRunSlots      = "RUN_SLOTS"
	envWindowMinutes = "RUN_WINDOW_MINUTES"
	envAllowForce    = "ALLOW_FORCE"
	envRuntimeDir    = "RUNTIME_DIR"
	envBind          = "MARKETCAST_BIND"
	envLogMaxBytes   = "RUN_LOG_MAX_BYTES"
	envLogTailBytes  = "RUN_LOG_TAIL_BYTES"
)

func (c *Config) normalize() error {
	if err := c.applyEnvOverrides(); err != nil {
		return err
	}

	c.Service.TimeZone = strings.TrimSpace(c.Service.TimeZone)
	c.Service.Token = strings.TrimSpace(c.Service.Token)
	c.Service.Bind = strings.TrimSpace(c.Service.Bind)

	runtimeDir, err := expandPath(c.Service.RuntimeDir)
	if err != nil {
		return err
	}
	c.Service.RuntimeDir = runtimeDir

	workDir, err := expandPath(c.Pipeline.WorkDir)
	if err != nil {
		return err
	}
	c.Pipeline.WorkDir = workDir

	for i := range c.Schedule.Weekdays {
		c.Schedule.Weekdays[i] = strings.ToLower(strings.TrimSpace(c.Schedule.Weekdays[i]))
	}
	sort.SliceStable(c.Schedule.Slots, func(i, j int) bool {
		return c.Schedule.Slots[i].Minute < c.Schedule.Slots[j].Minute
	})

	for i := range c.Pipeline.Steps {
		c.Pipeline.Steps[i].Name = strings.TrimSpace(c.Pipeline.Steps[i].Name)
	}
	c.Pipeline.UploadStep = strings.TrimSpace(c.Pipeline.UploadStep)

	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v, ok := lookupEnv(envToken); ok {
		c.Service.Token = v
	}
	if v, ok := lookupEnv(envTimeZone); ok {
		c.Service.TimeZone = v
	}
	if v, ok := lookupEnv(envRuntimeDir); ok {
		c.Service.RuntimeDir = v
	}
	if v, ok := lookupEnv(envBind); ok {
		c.Service.Bind = v
	}
	if v, ok := lookupEnv(envAllowForce); ok {
		c.Service.AllowForce = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := lookupEnv(envRunHour); ok {
		hour, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envRunHour, err)
		}
		c.Schedule.Hour = hour
	}
	if v, ok := lookupEnv(envWindowMinutes); ok {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envWindowMinutes, err)
		}
		c.Schedule.WindowMinutes = minutes
	}
	if v, ok := lookupEnv(envRunSlots); ok {
		slots, err := parseSlotList(v, c.Schedule.Slots)
		if err != nil {
			return fmt.Errorf("%s: %w", envRunSlots, err)
		}
		c.Schedule.Slots = slots
	}
	if v, ok := lookupEnv(envLogMaxBytes); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envLogMaxBytes, err)
		}
		c.RunLog.MaxBytes = n
	}
	if v, ok := lookupEnv(envLogTailBytes); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envLogTailBytes, err)
		}
		c.RunLog.TailReadBytes = n
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// parseSlotList parses a comma-separated minute list ("0,30"). Profiles for
// minutes already present in the configured slots are preserved; new minutes
// default to the normal profile.
func parseSlotList(value string, existing []Slot) ([]Slot, error) {
	profiles := make(map[int]string, len(existing))
	for _, slot := range existing {
		profiles[slot.Minute] = slot.Profile
	}

	var slots []Slot
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		minute, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid slot minute %q", part)
		}
		profile := profiles[minute]
		if profile == "" {
			profile = ProfileNormal
		}
		slots = append(slots, Slot{Minute: minute, Profile: profile})
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("no slots in %q", value)
	}
	return slots, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// WeekdaySet resolves the configured weekday names into a lookup set.
// Unknown names are caught by Validate.
func (s Schedule) WeekdaySet() map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(s.Weekdays))
	for _, name := range s.Weekdays {
		if day, ok := weekdayNames[name]; ok {
			set[day] = true
		}
	}
	return set
}
