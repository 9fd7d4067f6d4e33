package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config")
	}
	if cfg.Capture.IntervalSeconds != defaultIntervalSeconds {
		t.Errorf("interval = %v, want default %v", cfg.Capture.IntervalSeconds, defaultIntervalSeconds)
	}
	if cfg.Encryption.Algorithm != "aes-gcm" {
		t.Errorf("algorithm = %q, want aes-gcm", cfg.Encryption.Algorithm)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[capture]
interval_seconds = 2.5
backend = "ONESHOT"

[encryption]
algorithm = "chacha20-poly1305"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Capture.Backend != "oneshot" {
		t.Errorf("backend = %q, want oneshot", cfg.Capture.Backend)
	}
	if cfg.Capture.IntervalSeconds != 2.5 {
		t.Errorf("interval = %v, want 2.5", cfg.Capture.IntervalSeconds)
	}
	if !strings.HasPrefix(cfg.Journal.Path, filepath.Join(dir, "data")) {
		t.Errorf("journal path %q not rooted in data dir", cfg.Journal.Path)
	}
	if cfg.EncryptedDir() != filepath.Join(dir, "data", "encrypted") {
		t.Errorf("EncryptedDir = %q", cfg.EncryptedDir())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.Capture.Backend = "wayland" }},
		{"bad algorithm", func(c *Config) { c.Encryption.Algorithm = "des" }},
		{"low iterations", func(c *Config) { c.Encryption.Iterations = 1000 }},
		{"tiny interval", func(c *Config) { c.Capture.IntervalSeconds = 0.01 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, p := range []string{cfg.PlainDir(), cfg.EncryptedDir(), cfg.Paths.LogDir} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("directory %q missing", p)
		}
	}
}

func TestReadEnvDefaults(t *testing.T) {
	for _, key := range []string{EnvPassphrase, EnvForceBackend, EnvScreenLocked, EnvTZSpec, EnvDSTAdjust} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	e := ReadEnv()
	if e.TZSpec != "UTC" {
		t.Errorf("TZSpec = %q, want UTC", e.TZSpec)
	}
	if e.DSTAdjust {
		t.Error("DSTAdjust should default false")
	}
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvForceBackend, " OneShot ")
	t.Setenv(EnvTZSpec, "local")
	t.Setenv(EnvDSTAdjust, "true")
	e := ReadEnv()
	if e.ForceBackend != "oneshot" {
		t.Errorf("ForceBackend = %q", e.ForceBackend)
	}
	if e.TZSpec != "LOCAL" {
		t.Errorf("TZSpec = %q", e.TZSpec)
	}
	if !e.DSTAdjust {
		t.Error("DSTAdjust should be true")
	}
}
