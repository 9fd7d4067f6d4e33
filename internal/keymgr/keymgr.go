package keymgr

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hindsight/internal/crypto"
	"hindsight/internal/logging"
	"hindsight/internal/secretstore"
)

// Secret store entry names.
const (
	ChallengeEntry     = "challenge"
	RecoveryTokenEntry = "recovery_token"
	AutostartEntry     = "autostart_key"
)

// File names inside the encrypted directory, owned exclusively by this package.
const (
	WrappedKeyFile = "key.wrapped.json"
	IPCInfoFile    = "key.ipc.json"
	LockStateFile  = "lockstate.json"
)

var (
	// ErrNotProtected indicates no wrapped-key payload exists yet.
	ErrNotProtected = errors.New("protection not initialized")
	// ErrAuthFailed indicates the supplied secret did not authorize the operation.
	ErrAuthFailed = errors.New("authorization failed")
	// ErrAutostartMissing indicates the recovery path cannot proceed because no
	// autostart key was ever stored.
	ErrAutostartMissing = errors.New("autostart key missing; cannot recover data key")
)

// Manager owns the wrapped-key payload, the lockout state, and the secret
// store entries that together protect the data encryption key.
type Manager struct {
	baseDir    string
	store      secretstore.Store
	logger     *slog.Logger
	iterations int
	now        func() time.Time
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithIterations overrides the PBKDF2 work factor for new wraps.
func WithIterations(iterations int) Option {
	return func(m *Manager) {
		if iterations > 0 {
			m.iterations = iterations
		}
	}
}

// WithClock overrides the time source (used in lockout tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New constructs a Manager rooted at baseDir. If store is nil the default
// keyring-with-file-fallback chain is used.
func New(baseDir string, store secretstore.Store, logger *slog.Logger, opts ...Option) *Manager {
	if store == nil {
		store = secretstore.Default(filepath.Join(baseDir, "encrypted", "secretstore.json"))
	}
	m := &Manager{
		baseDir:    baseDir,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "keymgr"),
		iterations: crypto.DefaultIterations,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EncDir returns the encrypted directory holding key material and artifacts.
func (m *Manager) EncDir() string {
	return filepath.Join(m.baseDir, "encrypted")
}

// WrappedKeyPath returns the wrapped-key payload location.
func (m *Manager) WrappedKeyPath() string {
	return filepath.Join(m.EncDir(), WrappedKeyFile)
}

// IPCInfoPath returns the key-retrieval IPC info file location.
func (m *Manager) IPCInfoPath() string {
	return filepath.Join(m.EncDir(), IPCInfoFile)
}

// Protected reports whether a wrapped-key payload exists.
func (m *Manager) Protected() bool {
	_, err := os.Stat(m.WrappedKeyPath())
	return err == nil
}

// CreateProtection generates a fresh data key, wraps it under passphrase, and
// seeds the challenge, recovery, and autostart secrets. The returned recovery
// token is shown exactly once; it is not retrievable after rotation.
func (m *Manager) CreateProtection(passphrase string) (string, error) {
	if err := CheckSecret(passphrase); err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.EncDir(), 0o755); err != nil {
		return "", fmt.Errorf("create encrypted directory: %w", err)
	}

	dataKey, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}
	payload, err := crypto.WrapKey(dataKey, passphrase, m.iterations)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(m.WrappedKeyPath(), payload, 0o600); err != nil {
		return "", fmt.Errorf("write wrapped key: %w", err)
	}

	if err := m.storeChallenge(dataKey); err != nil {
		return "", err
	}
	recovery, err := m.rotateRecoveryToken()
	if err != nil {
		return "", err
	}
	// Best effort: a missing autostart key only disables unattended unlock
	// and the recovery path, it does not break protection itself.
	if err := m.store.Set(AutostartEntry, base64.StdEncoding.EncodeToString(dataKey)); err != nil {
		m.logger.Warn("autostart key not stored",
			logging.Error(err),
			logging.String(logging.FieldEventType, "autostart_store_failed"),
			logging.String(logging.FieldErrorHint, "unattended unlock and recovery-token changes will be unavailable"),
		)
	}

	if err := m.writeLockState(LockState{}); err != nil {
		return "", err
	}
	m.logger.Info("protection created", logging.Int("kdf_iterations", m.iterations))
	return recovery, nil
}

// ValidatePassphrase reports whether passphrase unwraps the protected data
// key. The challenge token is decrypted as a second check so a substituted
// payload that happens to unwrap still fails. Missing challenge or autostart
// entries are lazily recreated. Never returns an error: every failure maps
// to false.
func (m *Manager) ValidatePassphrase(passphrase string) bool {
	payload, err := os.ReadFile(m.WrappedKeyPath())
	if err != nil {
		return false
	}
	dataKey, err := crypto.UnwrapKey(payload, passphrase)
	if err != nil {
		return false
	}

	tokenB64, err := m.store.Get(ChallengeEntry)
	if err != nil || tokenB64 == "" {
		// First validation after a lost secret store: reseed and accept.
		if err := m.storeChallenge(dataKey); err != nil {
			m.logger.Warn("challenge token reseed failed", logging.Error(err))
		}
		return true
	}
	token, err := base64.StdEncoding.DecodeString(tokenB64)
	if err != nil {
		return false
	}
	if _, err := crypto.Decrypt(token, dataKey); err != nil {
		return false
	}
	if _, err := m.store.Get(AutostartEntry); err != nil {
		if err := m.store.Set(AutostartEntry, base64.StdEncoding.EncodeToString(dataKey)); err != nil {
			m.logger.Warn("autostart key reseed failed", logging.Error(err))
		}
	}
	return true
}

// AutostartKey returns the stored base64 data key, if present.
func (m *Manager) AutostartKey() (string, bool) {
	value, err := m.store.Get(AutostartEntry)
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

// DataKey unwraps and returns the data key using passphrase.
func (m *Manager) DataKey(passphrase string) ([]byte, error) {
	payload, err := os.ReadFile(m.WrappedKeyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotProtected
		}
		return nil, err
	}
	return crypto.UnwrapKey(payload, passphrase)
}

// ChangePassphrase rewraps the data key under newSecret. Authorization is
// either the current passphrase, or (useRecovery) the stored recovery token
// with the data key taken from the autostart entry. On success the autostart
// key is refreshed and the recovery token rotated; the returned token
// replaces the old one, which is no longer accepted.
func (m *Manager) ChangePassphrase(authSecret, newSecret string, useRecovery bool) (string, error) {
	if !m.Protected() {
		return "", ErrNotProtected
	}

	var dataKey []byte
	if useRecovery {
		stored, err := m.store.Get(RecoveryTokenEntry)
		if err != nil || stored == "" || stored != authSecret {
			return "", ErrAuthFailed
		}
		autostart, ok := m.AutostartKey()
		if !ok {
			return "", ErrAutostartMissing
		}
		dataKey, err = base64.StdEncoding.DecodeString(autostart)
		if err != nil || len(dataKey) != crypto.KeySize {
			return "", fmt.Errorf("%w: stored key corrupted", ErrAutostartMissing)
		}
	} else {
		if !m.ValidatePassphrase(authSecret) {
			return "", ErrAuthFailed
		}
		var err error
		dataKey, err = m.DataKey(authSecret)
		if err != nil {
			return "", ErrAuthFailed
		}
	}

	if err := CheckSecret(newSecret); err != nil {
		return "", err
	}

	payload, err := crypto.WrapKey(dataKey, newSecret, m.iterations)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(m.WrappedKeyPath(), payload, 0o600); err != nil {
		return "", fmt.Errorf("write wrapped key: %w", err)
	}
	if err := m.store.Set(AutostartEntry, base64.StdEncoding.EncodeToString(dataKey)); err != nil {
		m.logger.Warn("autostart key refresh failed", logging.Error(err))
	}

	recovery, err := m.rotateRecoveryToken()
	if err != nil {
		// The rewrap already happened; surface the old token being dead.
		return "", fmt.Errorf("passphrase changed but recovery token rotation failed: %w", err)
	}
	m.logger.Info("passphrase changed", logging.Bool("via_recovery", useRecovery))
	return recovery, nil
}

func (m *Manager) storeChallenge(dataKey []byte) error {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return fmt.Errorf("generate challenge: %w", err)
	}
	token, err := crypto.Encrypt(challenge, dataKey)
	if err != nil {
		return err
	}
	return m.store.Set(ChallengeEntry, base64.StdEncoding.EncodeToString(token))
}

func (m *Manager) rotateRecoveryToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate recovery token: %w", err)
	}
	token := base64.StdEncoding.EncodeToString(raw)
	if err := m.store.Set(RecoveryTokenEntry, token); err != nil {
		return "", fmt.Errorf("store recovery token: %w", err)
	}
	return token, nil
}
