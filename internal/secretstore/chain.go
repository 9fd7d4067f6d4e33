package secretstore

import "errors"

// Chain composes a primary store with a fallback. Writes try the primary and
// fall back to the secondary on any failure; reads check the primary first.
// This replaces runtime type inspection with an explicit policy.
type Chain struct {
	primary  Store
	fallback Store
}

// NewChain builds a try-primary-then-fallback store.
func NewChain(primary, fallback Store) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

// Default composes the system keyring with a JSON fallback file at
// fallbackPath.
func Default(fallbackPath string) *Chain {
	return NewChain(NewKeyring(), NewFile(fallbackPath))
}

func (c *Chain) Set(name, value string) error {
	if err := c.primary.Set(name, value); err == nil {
		return nil
	}
	return c.fallback.Set(name, value)
}

func (c *Chain) Get(name string) (string, error) {
	value, err := c.primary.Get(name)
	if err == nil && value != "" {
		return value, nil
	}
	return c.fallback.Get(name)
}

// Delete removes the secret from both stores. Missing entries are not errors;
// the first real failure is reported after both attempts.
func (c *Chain) Delete(name string) error {
	errPrimary := c.primary.Delete(name)
	errFallback := c.fallback.Delete(name)
	if errPrimary != nil && !errors.Is(errPrimary, ErrNotFound) {
		return errPrimary
	}
	if errFallback != nil && !errors.Is(errFallback, ErrNotFound) {
		return errFallback
	}
	return nil
}
