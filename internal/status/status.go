// Package status publishes a per-tick snapshot of the capture daemon's
// state as an atomically rewritten JSON file, with an in-memory copy for
// cross-goroutine reads.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hindsight/internal/capture"
)

// Capture is one status record. The daemon rewrites the status file with a
// fresh record every tick; external tooling reads it to render state.
type Capture struct {
	LastCaptureUTC    time.Time     `json:"last_capture_utc"`
	WindowTitle       string        `json:"window_title,omitempty"`
	WindowBBox        *capture.Rect `json:"window_bbox,omitempty"`
	EncryptedImage    string        `json:"encrypted_image,omitempty"`
	EncryptedText     string        `json:"encrypted_text,omitempty"`
	CaptureCount      int           `json:"capture_count"`
	IntervalSec       float64       `json:"interval_sec"`
	Duplicate         bool          `json:"duplicate"`
	Error             string        `json:"error,omitempty"`
	Paused            bool          `json:"paused"`
	PauseReason       string        `json:"pause_reason,omitempty"`
	CaptureBackend    string        `json:"capture_backend"`
	DisplayEnv        string        `json:"display_env,omitempty"`
	SessionType       string        `json:"session_type,omitempty"`
	ProcessPID        int           `json:"process_pid"`
	ServiceInstanceID string        `json:"service_instance_id"`
	ServiceStartUTC   time.Time     `json:"service_start_utc"`
	Sequence          uint64        `json:"sequence"`
}

// Publisher writes status records atomically and keeps the last one for
// snapshot reads. Safe for concurrent use.
type Publisher struct {
	path string

	mu   sync.Mutex
	last Capture
	seq  uint64
	ok   bool
}

// NewPublisher writes records to path.
func NewPublisher(path string) *Publisher {
	return &Publisher{path: path}
}

// Path returns the status file location.
func (p *Publisher) Path() string { return p.path }

// Write assigns the next sequence number, stores the record as the latest
// snapshot, and rewrites the status file via a temp file and rename so
// readers never observe a torn write.
func (p *Publisher) Write(record Capture) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	record.Sequence = p.seq
	p.last = record
	p.ok = true

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename status: %w", err)
	}
	return nil
}

// Last returns the most recently written record, if any.
func (p *Publisher) Last() (Capture, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.ok
}

// Read loads the record currently on disk. Used by external tooling that
// does not share the Publisher's memory.
func Read(path string) (Capture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Capture{}, err
	}
	var record Capture
	if err := json.Unmarshal(raw, &record); err != nil {
		return Capture{}, fmt.Errorf("parse status file: %w", err)
	}
	return record, nil
}
