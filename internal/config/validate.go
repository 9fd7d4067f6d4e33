package config

import "fmt"

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Capture.Backend {
	case "", "session", "oneshot":
	default:
		return fmt.Errorf("capture.backend: unsupported value %q (expected session or oneshot)", c.Capture.Backend)
	}
	switch c.Encryption.Algorithm {
	case "aes-gcm", "chacha20-poly1305":
	default:
		return fmt.Errorf("encryption.algorithm: unsupported value %q (expected aes-gcm or chacha20-poly1305)", c.Encryption.Algorithm)
	}
	if c.Encryption.Iterations < 300_000 {
		return fmt.Errorf("encryption.kdf_iterations: %d is below the 300000 floor", c.Encryption.Iterations)
	}
	if c.Capture.IntervalSeconds < 0.1 {
		return fmt.Errorf("capture.interval_seconds: %v is too small", c.Capture.IntervalSeconds)
	}
	return nil
}
