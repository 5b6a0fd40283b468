// Package config loads, normalizes, and validates securerip configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SECURERIP_DEVICE. The Config type centralizes every knob the CLI and the
// ripping core need: drive settings, the trial/quorum policy, cooldown timing,
// and where work files, logs, and history live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
