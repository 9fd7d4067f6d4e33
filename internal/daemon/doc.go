// Package daemon combines the capture service and single-instance
// enforcement into one lifecycle: an advisory flock on the data directory
// with a PID-file liveness fallback.
package daemon
