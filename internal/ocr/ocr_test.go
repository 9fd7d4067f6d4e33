package ocr

import (
	"context"
	"testing"
	"time"
)

func TestTextFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"window_2025-06-07_08-09-10.png", "window_2025-06-07_08-09-10.txt"},
		{"report.final.png", "report.final.txt"},
		{"noextension", "noextension.txt"},
		{".hidden", ".hidden.txt"},
	}
	for _, tc := range cases {
		if got := TextFilename(tc.in); got != tc.want {
			t.Errorf("TextFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewTesseractDefaults(t *testing.T) {
	e := NewTesseract("", "", 0)
	if e.Binary != "tesseract" || e.Language != "eng" || e.Timeout != 30*time.Second {
		t.Errorf("defaults = %+v", e)
	}
	e = NewTesseract("/opt/tesseract", "deu", 5*time.Second)
	if e.Binary != "/opt/tesseract" || e.Language != "deu" || e.Timeout != 5*time.Second {
		t.Errorf("overrides = %+v", e)
	}
}

func TestTesseractMissingBinary(t *testing.T) {
	e := NewTesseract("definitely-not-a-real-ocr-binary", "eng", time.Second)
	if _, err := e.Extract(context.Background(), "/nonexistent.png"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
