// Package crypto provides the authenticated encryption and passphrase key
// wrapping primitives used for at-rest capture artifacts and the data key.
//
// Artifacts are sealed with a configurable AEAD (AES-256-GCM or
// ChaCha20-Poly1305); the data key itself is wrapped under a PBKDF2-derived
// key-encryption-key with the derivation parameters stored alongside the
// wrapped bytes.
package crypto
