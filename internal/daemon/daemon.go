package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"hindsight/internal/config"
	"hindsight/internal/logging"
	"hindsight/internal/service"
	"hindsight/internal/status"
)

// ErrInstanceConflict reports that another live daemon owns the data
// directory.
var ErrInstanceConflict = errors.New("another hindsight daemon instance is already running")

const stopTimeout = 5 * time.Second

// Daemon wraps the capture service with single-instance enforcement: an
// advisory file lock, with a PID-file liveness check as the fallback when
// flock is unusable on the data directory's filesystem.
type Daemon struct {
	cfg    *config.Config
	svc    *service.Service
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock
	pidFile  *PIDFile

	running atomic.Bool
}

// New constructs a daemon around an initialized capture service.
func New(cfg *config.Config, svc *service.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and service")
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "capture.lock")
	return &Daemon{
		cfg:      cfg,
		svc:      svc,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		pidFile:  NewPIDFile(filepath.Join(cfg.Paths.DataDir, "capture.pid")),
	}, nil
}

// Start enforces single-instance execution and launches the capture loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	if err := d.acquireInstance(); err != nil {
		return err
	}
	if err := d.svc.Start(ctx); err != nil {
		d.releaseInstance()
		return fmt.Errorf("start capture service: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("hindsight daemon started",
		logging.String("lock", d.lockPath),
		logging.String("instance_id", d.svc.InstanceID()),
	)
	return nil
}

// Stop halts the capture loop and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.svc.Stop(stopTimeout)
	d.releaseInstance()
	d.running.Store(false)
	d.logger.Info("hindsight daemon stopped")
}

// Running reports whether the daemon holds the instance lock and loop.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Status returns the last published capture status.
func (d *Daemon) Status() (status.Capture, bool) {
	return d.svc.Status()
}

// acquireInstance tries the advisory lock first. A held lock is a definite
// conflict; a lock error (unsupported filesystem) falls back to the
// PID-file check.
func (d *Daemon) acquireInstance() error {
	ok, err := d.lock.TryLock()
	if err == nil {
		if !ok {
			return ErrInstanceConflict
		}
		// Record the PID alongside the lock for operator inspection.
		if writeErr := d.pidFile.Write(); writeErr != nil {
			d.logger.Warn("pid file write failed", logging.Error(writeErr))
		}
		return nil
	}

	d.logger.Warn("file lock unavailable, falling back to pid file",
		logging.Error(err))
	return d.pidFile.Acquire()
}

func (d *Daemon) releaseInstance() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("lock release failed", logging.Error(err))
	}
	d.pidFile.Remove()
}
