// Package logging builds the daemon's slog loggers and provides the
// standardized attribute helpers used across packages.
package logging
