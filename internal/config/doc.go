// Package config loads, validates, and normalizes hindsight configuration
// from TOML files and exposes the HINDSIGHT_* environment overrides.
package config
