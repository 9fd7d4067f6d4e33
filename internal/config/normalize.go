package config

import (
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = filepath.Join(c.Paths.DataDir, "journal.db")
	} else if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return err
	}

	c.Capture.Backend = strings.ToLower(strings.TrimSpace(c.Capture.Backend))
	c.Encryption.Algorithm = strings.ToLower(strings.TrimSpace(c.Encryption.Algorithm))
	if c.Encryption.Algorithm == "" {
		c.Encryption.Algorithm = defaultAlgorithm
	}
	if c.Capture.IntervalSeconds <= 0 {
		c.Capture.IntervalSeconds = defaultIntervalSeconds
	}
	if c.Capture.MaxTitleLength <= 0 {
		c.Capture.MaxTitleLength = defaultMaxTitleLength
	}
	if c.Encryption.Iterations <= 0 {
		c.Encryption.Iterations = defaultKDFIterations
	}
	return nil
}
