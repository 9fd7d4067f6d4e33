package ipc

import (
	"time"

	"hindsight/internal/status"
)

// StatusRequest asks for daemon runtime information.
type StatusRequest struct{}

// StatusResponse carries daemon state and the last capture status record.
type StatusResponse struct {
	Running   bool           `json:"running"`
	PID       int            `json:"pid"`
	LockPath  string         `json:"lock_path"`
	HasStatus bool           `json:"has_status"`
	Capture   status.Capture `json:"capture"`
}

// StopRequest asks the daemon to shut down the capture loop.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// LockInfoRequest asks for the passphrase lockout state.
type LockInfoRequest struct{}

// LockInfoResponse mirrors the on-disk lockout state plus a derived
// locked-right-now flag.
type LockInfoResponse struct {
	Fails     int        `json:"fails"`
	LastFail  *time.Time `json:"last_fail"`
	LockUntil *time.Time `json:"lock_until"`
	Reset     bool       `json:"reset"`
	Locked    bool       `json:"locked"`
}
