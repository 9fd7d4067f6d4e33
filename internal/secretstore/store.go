// Package secretstore abstracts where the daemon keeps small named secrets
// (challenge token, recovery token, autostart key). The system keyring is
// preferred; a JSON fallback file keeps headless hosts working.
package secretstore

import "errors"

// ErrNotFound indicates the named secret does not exist in the store.
var ErrNotFound = errors.New("secret not found")

// Store holds small named secrets.
type Store interface {
	Set(name, value string) error
	// Get returns the secret value, or ErrNotFound.
	Get(name string) (string, error)
	Delete(name string) error
}
