package secretstore

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// ServiceName identifies hindsight entries in the system keyring.
const ServiceName = "hindsight"

// Keyring stores secrets in the operating system keyring.
type Keyring struct {
	service string
}

// NewKeyring returns a Store backed by the system keyring.
func NewKeyring() *Keyring {
	return &Keyring{service: ServiceName}
}

func (k *Keyring) Set(name, value string) error {
	return keyring.Set(k.service, name, value)
}

func (k *Keyring) Get(name string) (string, error) {
	value, err := keyring.Get(k.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (k *Keyring) Delete(name string) error {
	err := keyring.Delete(k.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
