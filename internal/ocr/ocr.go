// Package ocr extracts text from captured screenshots through an external
// Tesseract binary. Recognition quality is the binary's problem; this
// package only handles invocation and filename conventions.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Extractor produces the OCR text for an image on disk.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) (string, error)
}

// TextFilename derives the OCR artifact name from a screenshot filename by
// swapping the extension for .txt.
func TextFilename(imageName string) string {
	if i := strings.LastIndex(imageName, "."); i > 0 {
		imageName = imageName[:i]
	}
	return imageName + ".txt"
}

// Tesseract shells out to the tesseract binary, reading recognized text from
// stdout.
type Tesseract struct {
	Binary   string
	Language string
	Timeout  time.Duration
}

// NewTesseract builds an extractor with defaults filled in for zero values.
func NewTesseract(binary, language string, timeout time.Duration) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Tesseract{Binary: binary, Language: language, Timeout: timeout}
}

func (t *Tesseract) Extract(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Binary, imagePath, "stdout", "-l", t.Language)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("tesseract: %w: %s", err, msg)
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return stdout.String(), nil
}
