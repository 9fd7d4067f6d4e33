package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length in bytes of data keys and derived KEKs.
const KeySize = 32

// ErrAuthentication indicates a ciphertext failed its integrity check:
// tampering, truncation, or the wrong key. Decrypt never returns garbage.
var ErrAuthentication = errors.New("ciphertext failed authentication")

// Algorithm selects the AEAD used for artifact encryption.
type Algorithm string

const (
	AESGCM           Algorithm = "aes-gcm"
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm maps a config string to an Algorithm.
func ParseAlgorithm(value string) (Algorithm, error) {
	switch Algorithm(value) {
	case AESGCM, ChaCha20Poly1305:
		return Algorithm(value), nil
	case "":
		return AESGCM, nil
	default:
		return "", fmt.Errorf("unsupported encryption algorithm %q", value)
	}
}

// GenerateKey returns a fresh random symmetric key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// Cipher performs authenticated encryption of byte buffers. Instances are
// stateless and safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	alg  Algorithm
}

// NewCipher constructs a Cipher for the given 32-byte key and algorithm.
func NewCipher(key []byte, alg Algorithm) (*Cipher, error) {
	aead, err := newAEAD(key, alg)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead, alg: alg}, nil
}

func newAEAD(key []byte, alg Algorithm) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be exactly %d bytes", KeySize)
	}
	switch alg {
	case AESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("create AES cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("unsupported encryption algorithm %q", alg)
	}
}

// Algorithm reports which AEAD this cipher uses.
func (c *Cipher) Algorithm() Algorithm { return c.alg }

// Encrypt seals plaintext with a random nonce. The nonce is prepended to the
// returned ciphertext so decryption is self-contained.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce-prefixed ciphertext. Returns ErrAuthentication when
// the ciphertext was tampered with or sealed under a different key.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, ErrAuthentication
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// Encrypt seals plaintext under key with AES-256-GCM. Used for key material
// (challenge tokens, key wrapping) where the algorithm is fixed so payloads
// stay self-describing without an algorithm field.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	c, err := NewCipher(key, AESGCM)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(plaintext)
}

// Decrypt opens an AES-256-GCM ciphertext produced by Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	c, err := NewCipher(key, AESGCM)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(ciphertext)
}
