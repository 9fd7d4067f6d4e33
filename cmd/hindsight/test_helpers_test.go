package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"hindsight/internal/capture"
	"hindsight/internal/config"
	"hindsight/internal/crypto"
	"hindsight/internal/daemon"
	"hindsight/internal/ipc"
	"hindsight/internal/service"
)

type idleGrabber struct{}

func (idleGrabber) Grab(capture.Rect) ([]byte, error) { return []byte("frame"), nil }
func (idleGrabber) Reopen()                           {}
func (idleGrabber) Name() string                      { return "idle" }

type idleExtractor struct{}

func (idleExtractor) Extract(context.Context, string) (string, error) { return "", nil }

// writeTestConfig builds a config file whose directories live under a temp
// dir and returns its path together with the parsed config.
func writeTestConfig(t *testing.T) (string, *config.Config) {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[capture]
interval_seconds = 60.0

[encryption]
kdf_iterations = 300000

[journal]
enabled = true
path = %q
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "journal.db"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return configPath, cfg
}

// startDaemonEnv brings up a paused daemon with an IPC server for CLI
// round-trip tests.
func startDaemonEnv(t *testing.T, cfg *config.Config) (socket string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	svc, err := service.New(cfg, config.Env{ScreenLocked: "1"}, key, service.Options{
		SessionGrabber: idleGrabber{},
		OneShotGrabber: idleGrabber{},
		Extractor:      idleExtractor{},
		WindowFn:       func() capture.WindowInfo { return capture.WindowInfo{Title: "t"} },
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := daemon.New(cfg, svc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Stop)

	socket = filepath.Join(cfg.Paths.DataDir, ipc.SocketName)
	srv, err := ipc.NewServer(context.Background(), socket, d, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	waitForSocket(t, socket)
	return socket
}

func waitForSocket(t *testing.T, socket string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		client, err := ipc.Dial(socket)
		if err == nil {
			_ = client.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", socket, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output %q does not contain %q", output, want)
	}
}

func exitCodeOf(t *testing.T, err error) int {
	t.Helper()
	var exit *exitError
	if !errors.As(err, &exit) {
		t.Fatalf("expected exitError, got %v", err)
	}
	return exit.code
}

var ansiEscapes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// recoveryTokenFrom parses the one-time token out of command output.
func recoveryTokenFrom(t *testing.T, output string) string {
	t.Helper()
	plain := ansiEscapes.ReplaceAllString(output, "")
	lines := strings.Split(plain, "\n")
	for i, line := range lines {
		if strings.Contains(line, "Recovery token") && i+1 < len(lines) {
			token := strings.TrimSpace(lines[i+1])
			if token != "" {
				return token
			}
		}
	}
	t.Fatalf("no recovery token in output %q", output)
	return ""
}
