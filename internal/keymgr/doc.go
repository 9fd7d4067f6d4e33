// Package keymgr owns the lifecycle of the data encryption key: creation,
// passphrase wrapping, validation, rotation, and brute-force lockout
// tracking, including the destructive reset at the attempt ceiling.
package keymgr
