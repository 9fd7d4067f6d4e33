package crypto

import (
	"fmt"
	"os"
	"path/filepath"
)

// EncryptedSuffix is appended to artifact names after encryption.
const EncryptedSuffix = ".enc"

// EncryptFile encrypts the file at path into destDir as "<name>.enc". The
// source file is never mutated or removed; deleting plaintext originals is
// the caller's responsibility.
func EncryptFile(path string, c *Cipher, destDir string) (string, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read plaintext: %w", err)
	}
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	encPath := filepath.Join(destDir, filepath.Base(path)+EncryptedSuffix)
	if err := os.WriteFile(encPath, ciphertext, 0o600); err != nil {
		return "", fmt.Errorf("write ciphertext: %w", err)
	}
	return encPath, nil
}

// DecryptFile reads an encrypted artifact and returns its plaintext.
func DecryptFile(path string, c *Cipher) ([]byte, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ciphertext: %w", err)
	}
	return c.Decrypt(ciphertext)
}
