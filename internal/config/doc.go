// Package config loads, normalizes, and validates marketcast configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// RUN_TOKEN, RUN_HOUR, and RUNTIME_DIR so the daemon can be configured the
// same way on a PaaS container and a workstation. The Config type centralizes
// every knob the daemon and CLI need: schedule slots, pipeline step commands,
// run-log bounds, and the runtime directory holding state, lock, and log
// artifacts.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, sorted schedule slots, and clear validation errors.
package config
