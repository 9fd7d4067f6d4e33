// Package daemonrun assembles and runs the capture daemon process: config,
// logging, key resolution, single-instance enforcement, the capture loop,
// and the control socket. The hindsightd binary and `hindsight run` both
// delegate here.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"hindsight/internal/config"
	"hindsight/internal/daemon"
	"hindsight/internal/ipc"
	"hindsight/internal/journal"
	"hindsight/internal/keymgr"
	"hindsight/internal/logging"
	"hindsight/internal/service"
)

// Exit codes surfaced to the supervisor/frontend.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitInstanceConflict = 3
	ExitKeyUnavailable   = 4
)

// Run executes the daemon until a termination signal. The returned code is
// the intended process exit status.
func Run(configPath string) int {
	// Optional .env in the working directory, matching how the frontend
	// passes per-user overrides during development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return ExitFailure
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "hindsightd.log")},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return ExitFailure
	}

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("ensure directories", logging.Error(err))
		return ExitFailure
	}

	env := config.ReadEnv()
	keys := keymgr.New(cfg.Paths.DataDir, nil, logger,
		keymgr.WithIterations(cfg.Encryption.Iterations))

	key, err := service.ResolveKey(ctx, cfg, env, keys, logger)
	if err != nil {
		logger.Error("key resolution failed", logging.Error(err),
			logging.String(logging.FieldErrorHint, "start the frontend key server or set HINDSIGHT_PASSPHRASE"))
		if errors.Is(err, service.ErrKeyUnavailable) {
			return ExitKeyUnavailable
		}
		return ExitFailure
	}

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Warn("capture journal unavailable", logging.Error(err))
			store = nil
		} else {
			defer store.Close()
		}
	}

	svc, err := service.New(cfg, env, key, service.Options{
		Journal: store,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("build capture service", logging.Error(err))
		return ExitFailure
	}

	d, err := daemon.New(cfg, svc, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return ExitFailure
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		if errors.Is(err, daemon.ErrInstanceConflict) {
			return ExitInstanceConflict
		}
		return ExitFailure
	}
	defer d.Stop()

	socketPath := filepath.Join(cfg.Paths.DataDir, ipc.SocketName)
	ipcServer, err := ipc.NewServer(ctx, socketPath, d, keys, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return ExitFailure
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-ctx.Done()
	logger.Info("hindsightd shutting down")
	return ExitOK
}
