package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

const grabTimeout = 10 * time.Second

// commandOutput executes a system command and returns its stdout. It is a
// package-level variable so tests can replace it with a stub.
var commandOutput = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Grabber captures raw PNG bytes for a screen region. Real grabbers shell out
// to platform tools; tests inject fakes.
type Grabber interface {
	// Grab captures the region and returns encoded PNG bytes.
	Grab(bbox Rect) ([]byte, error)
	// Reopen tears down and reestablishes any persistent capture state.
	// Called before the retry after a failed Grab.
	Reopen()
	// Name identifies the grabber in logs and errors.
	Name() string
}

// SessionGrabber captures through maim, which talks to the X server over a
// connection that can go stale after display reconfiguration. Reopen is how
// the failover path forces a fresh connection on the next grab.
type SessionGrabber struct {
	tool string
}

// NewSessionGrabber returns the persistent-session grabber. An empty tool
// selects the default capture utility.
func NewSessionGrabber(tool string) *SessionGrabber {
	if tool == "" {
		tool = "maim"
	}
	return &SessionGrabber{tool: tool}
}

func (g *SessionGrabber) Name() string { return g.tool }

// Reopen is a no-op for the process-per-grab implementation; the interface
// hook exists so a true persistent session can reset its connection.
func (g *SessionGrabber) Reopen() {}

func (g *SessionGrabber) Grab(bbox Rect) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), grabTimeout)
	defer cancel()
	out, err := commandOutput(ctx, g.tool, "-g", bbox.String(), "/dev/stdout")
	if err != nil {
		return nil, fmt.Errorf("session grab %s: %w", bbox, err)
	}
	return out, nil
}

// OneShotGrabber captures through ImageMagick import, spawning a fresh
// process per frame. Slower than the session grabber but immune to stale
// display connections.
type OneShotGrabber struct {
	tool string
}

// NewOneShotGrabber returns the single-shot grabber. An empty tool selects
// the default capture utility.
func NewOneShotGrabber(tool string) *OneShotGrabber {
	if tool == "" {
		tool = "import"
	}
	return &OneShotGrabber{tool: tool}
}

func (g *OneShotGrabber) Name() string { return g.tool }

// Reopen is a no-op: every grab already starts from a clean process.
func (g *OneShotGrabber) Reopen() {}

func (g *OneShotGrabber) Grab(bbox Rect) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), grabTimeout)
	defer cancel()
	out, err := commandOutput(ctx, g.tool,
		"-window", "root",
		"-crop", bbox.String(),
		"png:-",
	)
	if err != nil {
		return nil, fmt.Errorf("oneshot grab %s: %w", bbox, err)
	}
	return out, nil
}
