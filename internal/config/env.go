package config

import (
	"strings"

	"github.com/allisson/go-env"
)

// Environment variable names consumed by the daemon core. Set by the frontend
// when it spawns the capture process, or by operators for headless runs.
const (
	// EnvPassphrase supplies the protection passphrase for headless unwrap.
	EnvPassphrase = "HINDSIGHT_PASSPHRASE"
	// EnvForceBackend forces the capture backend at startup (session|oneshot).
	EnvForceBackend = "HINDSIGHT_FORCE_BACKEND"
	// EnvScreenLocked simulates the screen-lock state for testing ("1"/"0").
	EnvScreenLocked = "HINDSIGHT_SCREEN_LOCKED"
	// EnvTZSpec selects the filename timestamp zone: UTC, LOCAL, or ±HHMM.
	EnvTZSpec = "HINDSIGHT_TZ_SPEC"
	// EnvDSTAdjust shifts filename timestamps forward one hour when truthy.
	EnvDSTAdjust = "HINDSIGHT_DST_ADJUST"
)

// Env is a point-in-time snapshot of the runtime environment overrides.
type Env struct {
	Passphrase   string
	ForceBackend string
	ScreenLocked string
	TZSpec       string
	DSTAdjust    bool
}

// ReadEnv captures the HINDSIGHT_* environment overrides.
func ReadEnv() Env {
	return Env{
		Passphrase:   env.GetString(EnvPassphrase, ""),
		ForceBackend: strings.ToLower(strings.TrimSpace(env.GetString(EnvForceBackend, ""))),
		ScreenLocked: strings.TrimSpace(env.GetString(EnvScreenLocked, "")),
		TZSpec:       strings.ToUpper(strings.TrimSpace(env.GetString(EnvTZSpec, "UTC"))),
		DSTAdjust:    env.GetBool(EnvDSTAdjust, false),
	}
}
