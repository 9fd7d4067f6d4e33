package keymgr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hindsight/internal/logging"
)

// LockDurations is the escalating cooldown table, indexed by
// min(len-1, fails-1): 5 minutes, 1 hour, 24 hours, then the longest repeats.
var LockDurations = []int64{5 * 60, 60 * 60, 24 * 60 * 60}

// MaxTotalAttempts is the failed-attempt count that triggers the destructive
// reset. After it, all protected material is unrecoverable by design.
const MaxTotalAttempts = 12

// LockState tracks failed unlock attempts. Mutated only by
// RecordFailedAttempt; fails is monotonically non-decreasing until the
// destructive reset.
type LockState struct {
	Fails     int        `json:"fails"`
	LastFail  *time.Time `json:"last_fail"`
	LockUntil *time.Time `json:"lock_until"`
	Reset     bool       `json:"reset,omitempty"`
}

// Locked reports whether the state is inside a cooldown window at now.
func (s LockState) Locked(now time.Time) bool {
	return s.LockUntil != nil && now.Before(*s.LockUntil)
}

func (m *Manager) lockStatePath() string {
	return filepath.Join(m.EncDir(), LockStateFile)
}

// LockInfo returns a read-only snapshot of the lockout state. A missing or
// unreadable file reads as the zero state.
func (m *Manager) LockInfo() LockState {
	raw, err := os.ReadFile(m.lockStatePath())
	if err != nil {
		return LockState{}
	}
	var state LockState
	if err := json.Unmarshal(raw, &state); err != nil {
		return LockState{}
	}
	return state
}

func (m *Manager) writeLockState(state LockState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.EncDir(), 0o755); err != nil {
		return fmt.Errorf("create encrypted directory: %w", err)
	}
	if err := os.WriteFile(m.lockStatePath(), raw, 0o600); err != nil {
		return fmt.Errorf("write lock state: %w", err)
	}
	return nil
}

// RecordFailedAttempt increments the failure counter and computes the next
// cooldown from the escalation table. At MaxTotalAttempts it performs the
// destructive reset: the wrapped key and IPC info files are deleted, all
// secret store entries are removed, and lockSeconds is nil to signal the
// irreversible terminal state.
func (m *Manager) RecordFailedAttempt() (total int, lockSeconds *int64, err error) {
	state := m.LockInfo()
	state.Fails++
	now := m.now().UTC()
	state.LastFail = &now
	total = state.Fails

	if total >= MaxTotalAttempts {
		state.LockUntil = nil
		state.Reset = true
		if err := m.writeLockState(state); err != nil {
			return total, nil, err
		}
		m.destructiveReset()
		return total, nil, nil
	}

	stage := total - 1
	if stage >= len(LockDurations) {
		stage = len(LockDurations) - 1
	}
	seconds := LockDurations[stage]
	until := now.Add(time.Duration(seconds) * time.Second)
	state.LockUntil = &until
	if err := m.writeLockState(state); err != nil {
		return total, nil, err
	}
	m.logger.Warn("failed unlock attempt recorded",
		logging.Int("total_attempts", total),
		logging.Int64("lock_seconds", seconds),
	)
	return total, &seconds, nil
}

// destructiveReset deletes every artifact needed to recover the data key.
// Deliberate data loss in response to suspected brute-forcing; logged, never
// retried around.
func (m *Manager) destructiveReset() {
	for _, name := range []string{WrappedKeyFile, IPCInfoFile} {
		path := filepath.Join(m.EncDir(), name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("destructive reset: file removal failed",
				logging.String("path", path), logging.Error(err))
		}
	}
	for _, entry := range []string{ChallengeEntry, RecoveryTokenEntry, AutostartEntry} {
		if err := m.store.Delete(entry); err != nil {
			m.logger.Warn("destructive reset: secret removal failed",
				logging.String("entry", entry), logging.Error(err))
		}
	}
	m.logger.Error("maximum failed attempts reached; protected material destroyed",
		logging.String(logging.FieldEventType, "destructive_reset"),
		logging.Int("max_attempts", MaxTotalAttempts),
	)
}
