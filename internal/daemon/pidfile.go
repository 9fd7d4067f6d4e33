package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// PIDFile implements the fallback single-instance check: a recorded PID is
// signal-probed, a dead one is treated as stale and removed, a live one is a
// refusal to start.
type PIDFile struct {
	path string
}

// NewPIDFile manages the PID file at path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file location.
func (p *PIDFile) Path() string { return p.path }

// Acquire claims the PID file for this process. Returns ErrInstanceConflict
// when a live process already holds it.
func (p *PIDFile) Acquire() error {
	if pid, ok := p.read(); ok {
		if processAlive(pid) {
			return fmt.Errorf("%w (pid %d)", ErrInstanceConflict, pid)
		}
		// Stale entry from a crashed run.
		_ = os.Remove(p.path)
	}
	return p.Write()
}

// Write records the current PID.
func (p *PIDFile) Write() error {
	content := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(p.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Remove deletes the PID file if it names this process.
func (p *PIDFile) Remove() {
	if pid, ok := p.read(); ok && pid == os.Getpid() {
		_ = os.Remove(p.path)
	}
}

func (p *PIDFile) read() (int, bool) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive signal-probes pid with the null signal. EPERM still means a
// live process owned by another user.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
