package keymgr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hindsight/internal/secretstore"
)

func TestRecordFailedAttemptEscalation(t *testing.T) {
	dir := t.TempDir()
	store := secretstore.NewFile(filepath.Join(dir, "secrets.json"))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := New(dir, store, nil, WithIterations(1000), WithClock(func() time.Time { return base }))

	want := []int64{300, 3600, 86400, 86400, 86400}
	for i, secs := range want {
		total, lock, err := m.RecordFailedAttempt()
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if total != i+1 {
			t.Fatalf("attempt %d: total = %d", i+1, total)
		}
		if lock == nil || *lock != secs {
			t.Fatalf("attempt %d: lock = %v, want %d", i+1, lock, secs)
		}
	}

	state := m.LockInfo()
	if state.Fails != len(want) {
		t.Errorf("Fails = %d, want %d", state.Fails, len(want))
	}
	if !state.Locked(base) {
		t.Error("Locked(now) = false inside cooldown")
	}
	if state.Locked(base.Add(25 * time.Hour)) {
		t.Error("Locked = true after cooldown expired")
	}
	wantUntil := base.Add(86400 * time.Second)
	if state.LockUntil == nil || !state.LockUntil.Equal(wantUntil) {
		t.Errorf("LockUntil = %v, want %v", state.LockUntil, wantUntil)
	}
}

func TestRecordFailedAttemptDestructiveReset(t *testing.T) {
	m, store := newTestManager(t)
	if _, err := m.CreateProtection(goodPassphrase); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.IPCInfoPath(), []byte(`{"host":"127.0.0.1","port":1,"token":"x"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	for i := 1; i < MaxTotalAttempts; i++ {
		if _, lock, err := m.RecordFailedAttempt(); err != nil || lock == nil {
			t.Fatalf("attempt %d: lock=%v err=%v", i, lock, err)
		}
	}
	total, lock, err := m.RecordFailedAttempt()
	if err != nil {
		t.Fatal(err)
	}
	if total != MaxTotalAttempts {
		t.Fatalf("total = %d, want %d", total, MaxTotalAttempts)
	}
	if lock != nil {
		t.Fatalf("terminal attempt returned lock %d, want nil", *lock)
	}

	if m.Protected() {
		t.Error("wrapped key survived destructive reset")
	}
	if _, err := os.Stat(m.IPCInfoPath()); !os.IsNotExist(err) {
		t.Error("IPC info file survived destructive reset")
	}
	for _, entry := range []string{ChallengeEntry, RecoveryTokenEntry, AutostartEntry} {
		if _, err := store.Get(entry); !errors.Is(err, secretstore.ErrNotFound) {
			t.Errorf("secret %q survived destructive reset (err = %v)", entry, err)
		}
	}
	if !m.LockInfo().Reset {
		t.Error("lock state does not record the reset")
	}
	if m.ValidatePassphrase(goodPassphrase) {
		t.Error("passphrase still validates after reset")
	}
}

func TestLockInfoMissingFile(t *testing.T) {
	m, _ := newTestManager(t)
	state := m.LockInfo()
	if state.Fails != 0 || state.LockUntil != nil || state.Reset {
		t.Fatalf("zero state expected, got %+v", state)
	}
	if state.Locked(time.Now()) {
		t.Fatal("zero state reports locked")
	}
}

func TestLockInfoCorruptFile(t *testing.T) {
	m, _ := newTestManager(t)
	if err := os.MkdirAll(m.EncDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(m.EncDir(), LockStateFile), []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if state := m.LockInfo(); state.Fails != 0 {
		t.Fatalf("corrupt file should read as zero state, got %+v", state)
	}
}
