package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"hindsight/internal/capture"
	"hindsight/internal/config"
	"hindsight/internal/crypto"
	"hindsight/internal/journal"
	"hindsight/internal/logging"
	"hindsight/internal/ocr"
	"hindsight/internal/status"
)

// Service runs the capture loop: one background goroutine that grabs the
// active window on a drift-corrected schedule, OCRs and encrypts the
// artifacts, and publishes a status record every tick.
type Service struct {
	cfg       *config.Config
	env       config.Env
	cipher    *crypto.Cipher
	selector  *capture.Selector
	extractor ocr.Extractor
	publisher *status.Publisher
	journal   *journal.Store
	lock      *capture.LockDetector
	logger    *slog.Logger
	prefs     capture.TimestampPrefs
	window    func() capture.WindowInfo
	now       func() time.Time

	instanceID string
	startedUTC time.Time

	prevHash [sha256.Size]byte
	hasPrev  bool
	count    int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Options carries the injectable collaborators. Zero values select the
// production implementations.
type Options struct {
	SessionGrabber capture.Grabber
	OneShotGrabber capture.Grabber
	Extractor      ocr.Extractor
	Journal        *journal.Store
	Logger         *slog.Logger
	Clock          func() time.Time
	WindowFn       func() capture.WindowInfo
}

// New builds a Service from validated configuration, the resolved data key,
// and the environment snapshot taken at startup.
func New(cfg *config.Config, env config.Env, key []byte, opts Options) (*Service, error) {
	alg, err := crypto.ParseAlgorithm(cfg.Encryption.Algorithm)
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewCipher(key, alg)
	if err != nil {
		return nil, fmt.Errorf("artifact cipher: %w", err)
	}

	logger := logging.NewComponentLogger(opts.Logger, "service")

	session := opts.SessionGrabber
	if session == nil {
		session = capture.NewSessionGrabber("")
	}
	oneshot := opts.OneShotGrabber
	if oneshot == nil {
		oneshot = capture.NewOneShotGrabber("")
	}
	initial := initialBackend(cfg, env, logger)
	selector := capture.NewSelector(session, oneshot, initial, opts.Logger)

	extractor := opts.Extractor
	if extractor == nil {
		extractor = ocr.NewTesseract(cfg.Capture.OCRBinary, cfg.Capture.OCRLanguage,
			time.Duration(cfg.Capture.OCRTimeoutSecond)*time.Second)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	window := opts.WindowFn
	if window == nil {
		window = capture.ActiveWindow
	}

	s := &Service{
		cfg:        cfg,
		env:        env,
		cipher:     cipher,
		selector:   selector,
		extractor:  extractor,
		publisher:  status.NewPublisher(cfg.StatusFile()),
		journal:    opts.Journal,
		lock:       capture.NewLockDetector(env.ScreenLocked, opts.Logger),
		logger:     logger,
		prefs:      capture.TimestampPrefs{Spec: env.TZSpec, DSTAdjust: env.DSTAdjust},
		window:     window,
		now:        clock,
		instanceID: uuid.NewString(),
		startedUTC: clock().UTC(),
	}
	s.count = countEncryptedImages(cfg.EncryptedDir())
	return s, nil
}

// initialBackend resolves the starting capture backend: environment override
// first, then the config file, then the session default.
func initialBackend(cfg *config.Config, env config.Env, logger *slog.Logger) capture.Backend {
	if env.ForceBackend != "" {
		if backend, ok := capture.ParseBackend(env.ForceBackend); ok {
			logger.Info("capture backend forced by environment",
				logging.String(logging.FieldBackend, backend.String()))
			return backend
		}
		logger.Warn("ignoring unknown forced backend",
			logging.String("value", env.ForceBackend))
	}
	if backend, ok := capture.ParseBackend(cfg.Capture.Backend); ok {
		return backend
	}
	return capture.BackendSession
}

// countEncryptedImages recounts the encrypted image artifacts on disk. The
// disk is the authoritative counter so restarts and external cleanup stay
// reflected.
func countEncryptedImages(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"+crypto.EncryptedSuffix))
	if err != nil {
		return 0
	}
	return len(matches)
}

// InstanceID identifies this service instance in status records.
func (s *Service) InstanceID() string { return s.instanceID }

// Status returns the last published status record.
func (s *Service) Status() (status.Capture, bool) {
	return s.publisher.Last()
}

// Start spawns the capture loop goroutine. Idempotent: starting a running
// service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.run(loopCtx)

	s.logger.Info("capture service started",
		logging.Any("interval_sec", s.cfg.Capture.IntervalSeconds),
		logging.String(logging.FieldBackend, s.selector.Current().String()),
		logging.String("instance_id", s.instanceID),
	)
	return nil
}

// Stop signals the loop to exit and waits up to timeout for it to reach a
// safe stopping point.
func (s *Service) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		s.logger.Info("capture service stopped")
	case <-time.After(timeout):
		s.logger.Warn("capture service stop timed out",
			logging.Duration("timeout", timeout))
	}
}

func (s *Service) interval() time.Duration {
	return time.Duration(s.cfg.Capture.IntervalSeconds * float64(time.Second))
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	interval := s.interval()
	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		s.tick(ctx)
		next = nextTarget(next, time.Now(), interval)
	}
}

// nextTarget advances the monotonic schedule target. Slow ticks do not
// accumulate drift, and when execution has fallen behind by one or more full
// intervals the skipped periods are dropped in bulk instead of being raced
// through back-to-back.
func nextTarget(next, now time.Time, interval time.Duration) time.Time {
	next = next.Add(interval)
	if behind := now.Sub(next); behind >= interval {
		next = next.Add(interval * (behind / interval))
	}
	return next
}

// tick runs one scheduled cycle. Failures are contained: they become an
// error status record, never a dead loop.
func (s *Service) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("capture tick panicked", logging.Any("panic", r))
			s.publishError(fmt.Sprintf("panic: %v", r))
		}
	}()

	if s.lock.Locked() {
		s.publishPaused("screen_locked")
		return
	}
	if err := s.captureOnce(ctx); err != nil {
		s.logger.Error("capture tick failed", logging.Error(err))
		s.publishError(err.Error())
	}
}

func (s *Service) captureOnce(ctx context.Context) error {
	info := s.window()
	ts := s.prefs.Timestamp(s.now())
	filename := capture.FilenameWithLimit(info.Title, ts, s.cfg.Capture.MaxTitleLength)

	raw, err := s.selector.CaptureRegion(info.BBox)
	if err != nil {
		return err
	}

	imgPath := filepath.Join(s.cfg.PlainDir(), filename)
	if err := os.WriteFile(imgPath, raw, 0o600); err != nil {
		return fmt.Errorf("write plaintext image: %w", err)
	}

	text, err := s.extractor.Extract(ctx, imgPath)
	if err != nil {
		s.logger.Warn("ocr extraction failed", logging.Error(err),
			logging.String(logging.FieldArtifact, filename))
		text = ""
	}
	txtPath := filepath.Join(s.cfg.PlainDir(), ocr.TextFilename(filename))
	if err := os.WriteFile(txtPath, []byte(text), 0o600); err != nil {
		s.removePlaintext(imgPath)
		return fmt.Errorf("write ocr text: %w", err)
	}

	hash := sha256.Sum256(raw)
	if s.hasPrev && hash == s.prevHash {
		s.removePlaintext(imgPath, txtPath)
		s.journalEntry(ctx, info, filename, true)
		s.publish(status.Capture{
			WindowTitle: info.Title,
			WindowBBox:  &info.BBox,
			Duplicate:   true,
		})
		return nil
	}

	encImg, err := crypto.EncryptFile(imgPath, s.cipher, s.cfg.EncryptedDir())
	if err != nil {
		s.removePlaintext(imgPath, txtPath)
		return fmt.Errorf("encrypt image: %w", err)
	}
	encTxt, err := crypto.EncryptFile(txtPath, s.cipher, s.cfg.EncryptedDir())
	if err != nil {
		s.removePlaintext(imgPath, txtPath)
		return fmt.Errorf("encrypt ocr text: %w", err)
	}
	s.removePlaintext(imgPath, txtPath)

	// Only a stored capture participates in duplicate detection; a frame
	// whose encryption failed must be retried by the next tick.
	s.prevHash = hash
	s.hasPrev = true

	s.count = countEncryptedImages(s.cfg.EncryptedDir())
	s.journalEntry(ctx, info, filename, false)
	s.publish(status.Capture{
		WindowTitle:    info.Title,
		WindowBBox:     &info.BBox,
		EncryptedImage: filepath.Base(encImg),
		EncryptedText:  filepath.Base(encTxt),
	})

	s.logger.Debug("captured and encrypted",
		logging.Int("capture_count", s.count),
		logging.String(logging.FieldArtifact, filepath.Base(encImg)),
		logging.String("window_title", info.Title),
	)
	return nil
}

func (s *Service) removePlaintext(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove plaintext artifact",
				logging.String("path", path), logging.Error(err))
		}
	}
}

func (s *Service) journalEntry(ctx context.Context, info capture.WindowInfo, filename string, duplicate bool) {
	if s.journal == nil {
		return
	}
	entry := journal.Entry{
		CreatedAt: s.now().UTC(),
		Title:     info.Title,
		Filename:  filename,
		Backend:   s.selector.Current().String(),
		Duplicate: duplicate,
		BBox:      info.BBox,
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("journal record failed", logging.Error(err))
	}
}

// publish fills the ambient fields of a status record and writes it.
func (s *Service) publish(record status.Capture) {
	record.LastCaptureUTC = s.now().UTC()
	record.CaptureCount = s.count
	record.IntervalSec = s.cfg.Capture.IntervalSeconds
	record.CaptureBackend = s.selector.Current().String()
	record.DisplayEnv = os.Getenv("DISPLAY")
	record.SessionType = os.Getenv("XDG_SESSION_TYPE")
	record.ProcessPID = os.Getpid()
	record.ServiceInstanceID = s.instanceID
	record.ServiceStartUTC = s.startedUTC
	if err := s.publisher.Write(record); err != nil {
		s.logger.Warn("status write failed", logging.Error(err))
	}
}

func (s *Service) publishPaused(reason string) {
	s.publish(status.Capture{Paused: true, PauseReason: reason})
}

func (s *Service) publishError(msg string) {
	if len(msg) > 500 {
		msg = msg[:500]
	}
	s.publish(status.Capture{Error: msg})
}
