package capture

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"hindsight/internal/logging"
)

const probeTimeout = 1 * time.Second

// LockDetector decides whether the screen is locked by running a fixed list
// of probes in order. Each probe either returns a definite answer or passes;
// the first definite answer wins, and if every probe is inconclusive the
// screen is treated as unlocked so capture continues.
type LockDetector struct {
	// Hint is the simulated lock state from the environment ("1"/"0"),
	// checked before any system query.
	Hint   string
	logger *slog.Logger
}

// NewLockDetector builds a detector with the given environment hint.
func NewLockDetector(hint string, logger *slog.Logger) *LockDetector {
	return &LockDetector{
		Hint:   hint,
		logger: logging.NewComponentLogger(logger, "lockscreen"),
	}
}

// Locked runs the probe chain: environment hint, loginctl session LockedHint,
// GNOME ScreenSaver over gdbus, generic ScreenSaver over qdbus.
func (d *LockDetector) Locked() bool {
	probes := []struct {
		name string
		fn   func() (locked, definite bool)
	}{
		{"env_hint", d.envHint},
		{"loginctl", d.loginctl},
		{"gdbus_gnome", d.gdbusGnome},
		{"qdbus_generic", d.qdbusGeneric},
	}
	for _, probe := range probes {
		locked, definite := probe.fn()
		if !definite {
			continue
		}
		if locked {
			d.logger.Debug("screen lock detected", logging.String("probe", probe.name))
		}
		return locked
	}
	return false
}

func (d *LockDetector) envHint() (bool, bool) {
	switch strings.TrimSpace(d.Hint) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}

func (d *LockDetector) loginctl() (bool, bool) {
	session := os.Getenv("XDG_SESSION_ID")
	if session == "" {
		session = "self"
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := commandOutput(ctx, "loginctl", "show-session", session, "--property=LockedHint")
	if err != nil {
		return false, false
	}
	switch strings.TrimSpace(string(out)) {
	case "LockedHint=yes":
		return true, true
	case "LockedHint=no":
		return false, true
	default:
		return false, false
	}
}

func (d *LockDetector) gdbusGnome() (bool, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := commandOutput(ctx, "gdbus", "call", "--session",
		"--dest", "org.gnome.ScreenSaver",
		"--object-path", "/org/gnome/ScreenSaver",
		"--method", "org.gnome.ScreenSaver.GetActive")
	if err != nil {
		return false, false
	}
	// gdbus prints a tuple like "(true,)".
	switch strings.Trim(strings.TrimSpace(string(out)), "(),") {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func (d *LockDetector) qdbusGeneric() (bool, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := commandOutput(ctx, "qdbus",
		"org.freedesktop.ScreenSaver", "/ScreenSaver", "GetActive")
	if err != nil {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(string(out))) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
