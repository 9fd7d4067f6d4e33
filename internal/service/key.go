package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"hindsight/internal/config"
	"hindsight/internal/crypto"
	"hindsight/internal/keyipc"
	"hindsight/internal/keymgr"
	"hindsight/internal/logging"
)

// ErrKeyUnavailable is the fatal startup condition: protection is enabled
// but no retrieval path produced the data key.
var ErrKeyUnavailable = errors.New("data key unavailable")

// legacyKeyFile is the pre-protection plaintext key file, kept so existing
// installations keep decrypting after an upgrade.
const legacyKeyFile = "key.plain"

// ResolveKey acquires the data encryption key at startup.
//
// With passphrase protection enabled the retrieval chain is: frontend IPC
// (bounded retries), then an environment-supplied passphrase, then the
// legacy plaintext key file. Exhausting the chain is ErrKeyUnavailable.
// Without protection the legacy key file is loaded, or created on first run.
func ResolveKey(ctx context.Context, cfg *config.Config, env config.Env, mgr *keymgr.Manager, logger *slog.Logger) ([]byte, error) {
	logger = logging.NewComponentLogger(logger, "keyresolve")
	encDir := cfg.EncryptedDir()

	if !mgr.Protected() {
		return loadOrCreatePlainKey(filepath.Join(encDir, legacyKeyFile), logger)
	}

	if info, err := keyipc.ReadInfo(mgr.IPCInfoPath()); err == nil {
		key, fetchErr := keyipc.FetchWithRetry(ctx, info)
		if fetchErr == nil {
			logger.Info("data key retrieved over IPC")
			return key, nil
		}
		logger.Warn("IPC key retrieval failed", logging.Error(fetchErr))
	}

	if env.Passphrase != "" {
		key, err := mgr.DataKey(env.Passphrase)
		if err == nil {
			logger.Info("data key unwrapped from environment passphrase")
			return key, nil
		}
		logger.Warn("environment passphrase rejected", logging.Error(err))
	}

	if key, err := readPlainKey(filepath.Join(encDir, legacyKeyFile)); err == nil {
		logger.Warn("falling back to legacy plaintext key file")
		return key, nil
	}

	return nil, fmt.Errorf("%w: no IPC endpoint, no usable passphrase, no legacy key", ErrKeyUnavailable)
}

func loadOrCreatePlainKey(path string, logger *slog.Logger) ([]byte, error) {
	if key, err := readPlainKey(path); err == nil {
		logger.Debug("loaded encryption key", logging.String("path", path))
		return key, nil
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	logger.Info("generated new encryption key", logging.String("path", path))
	return key, nil
}

// readPlainKey accepts both raw 32-byte keys and base64-encoded ones.
func readPlainKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimRight(raw, "\r\n")
	if len(trimmed) == crypto.KeySize {
		return trimmed, nil
	}
	key, decErr := base64.StdEncoding.DecodeString(string(trimmed))
	if decErr != nil || len(key) != crypto.KeySize {
		return nil, fmt.Errorf("key file %s is neither raw nor base64 key material", path)
	}
	return key, nil
}
