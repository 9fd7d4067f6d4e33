package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations is the PBKDF2-SHA256 work factor for new key wraps.
// Payloads carry their own iteration count, so older payloads keep working
// if this changes.
const DefaultIterations = 600_000

const saltSize = 16

// ErrUnwrap indicates a wrapped-key payload could not be opened: wrong
// passphrase or malformed payload.
var ErrUnwrap = errors.New("key unwrap failed")

// WrappedKey is the on-disk wrapped data key. The derivation parameters
// travel with the payload so unwrapping is self-describing.
type WrappedKey struct {
	Salt       []byte `json:"kdf_salt"`
	Iterations int    `json:"kdf_iters"`
	WrappedKey []byte `json:"wrapped_key"`
}

// DeriveKEK derives a key-encryption-key from a passphrase. Deterministic:
// the same inputs always produce the same key.
func DeriveKEK(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New)
}

// WrapKey encrypts dataKey under a key derived from passphrase and returns
// the serialized payload.
func WrapKey(dataKey []byte, passphrase string, iterations int) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return wrapKeyWithSalt(dataKey, passphrase, salt, iterations)
}

func wrapKeyWithSalt(dataKey []byte, passphrase string, salt []byte, iterations int) ([]byte, error) {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	kek := DeriveKEK(passphrase, salt, iterations)
	wrapped, err := Encrypt(dataKey, kek)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}
	payload := WrappedKey{Salt: salt, Iterations: iterations, WrappedKey: wrapped}
	return json.Marshal(payload)
}

// UnwrapKey re-derives the KEK with the payload's embedded parameters and
// decrypts the data key. Returns ErrUnwrap for a wrong passphrase or a
// malformed payload.
func UnwrapKey(payload []byte, passphrase string) ([]byte, error) {
	var wk WrappedKey
	if err := json.Unmarshal(payload, &wk); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", ErrUnwrap, err)
	}
	if len(wk.Salt) == 0 || wk.Iterations <= 0 || len(wk.WrappedKey) == 0 {
		return nil, fmt.Errorf("%w: incomplete payload", ErrUnwrap)
	}
	kek := DeriveKEK(passphrase, wk.Salt, wk.Iterations)
	dataKey, err := Decrypt(wk.WrappedKey, kek)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase", ErrUnwrap)
	}
	return dataKey, nil
}
