package capture

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"hindsight/internal/logging"
)

// ErrBackendFailure reports that both capture backends failed for a single
// frame. The wrapping error carries the cumulative failure count.
var ErrBackendFailure = errors.New("all capture backends failed")

// corruptFlipThreshold is the number of consecutive unreadable frames from
// the secondary backend that flips selection back to the primary.
const corruptFlipThreshold = 2

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// validPNG is a cheap sanity check for grabbed frames: correct signature and
// a closing IEND chunk. It does not decode the image.
func validPNG(data []byte) bool {
	if len(data) < 16 || !bytes.HasPrefix(data, pngSignature) {
		return false
	}
	return bytes.Contains(data[len(data)-12:], []byte("IEND"))
}

// Selector holds the current-backend state explicitly and applies the
// failover policy: a failing primary gets one retry after Reopen, a second
// consecutive failure falls over to the secondary and flips the selection
// for subsequent frames, and a secondary that keeps producing unreadable
// frames flips the selection back.
type Selector struct {
	mu       sync.Mutex
	current  Backend
	grabbers [2]Grabber
	corrupt  int
	failures int
	logger   *slog.Logger
}

// NewSelector builds a Selector over the two backends, starting on initial.
func NewSelector(session, oneshot Grabber, initial Backend, logger *slog.Logger) *Selector {
	return &Selector{
		current:  initial,
		grabbers: [2]Grabber{BackendSession: session, BackendOneShot: oneshot},
		logger:   logging.NewComponentLogger(logger, "capture"),
	}
}

// Current returns the backend the next frame will be captured with.
func (s *Selector) Current() Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Failures returns the cumulative grab failure count.
func (s *Selector) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// CaptureRegion grabs the region through the current backend, applying the
// failover policy on errors. The returned bytes are encoded PNG.
func (s *Selector) CaptureRegion(bbox Rect) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	primary := s.grabbers[s.current]
	data, err := primary.Grab(bbox)
	if err == nil {
		return s.accept(data), nil
	}
	firstErr := err
	s.failures++

	// One retry against a freshly reopened session.
	primary.Reopen()
	data, err = primary.Grab(bbox)
	if err == nil {
		return s.accept(data), nil
	}
	s.failures++

	// Second consecutive failure: fall over and flip for subsequent frames.
	fallback := s.current.Other()
	s.logger.Warn("capture backend failing over",
		logging.String(logging.FieldBackend, s.current.String()),
		logging.String("fallback", fallback.String()),
		logging.Error(err),
	)
	s.current = fallback
	s.corrupt = 0

	data, fbErr := s.grabbers[fallback].Grab(bbox)
	if fbErr != nil {
		s.failures++
		return nil, fmt.Errorf("%w after %d failures: %v; fallback: %v",
			ErrBackendFailure, s.failures, firstErr, fbErr)
	}
	return s.accept(data), nil
}

// accept applies the corrupt-frame counter to a successful grab. A valid
// frame resets the counter; the threshold flips selection back to the
// primary backend for subsequent frames. The frame is returned either way.
func (s *Selector) accept(data []byte) []byte {
	if validPNG(data) {
		s.corrupt = 0
		return data
	}
	if s.current != BackendOneShot {
		return data
	}
	s.corrupt++
	s.logger.Warn("unreadable frame from fallback backend",
		logging.String(logging.FieldBackend, s.current.String()),
		logging.Int("consecutive", s.corrupt),
	)
	if s.corrupt >= corruptFlipThreshold {
		s.current = BackendSession
		s.corrupt = 0
	}
	return data
}
