package main

import (
	"strings"
	"testing"
)

const (
	goodPassphrase = "Correct-Horse-Battery7!"
	nextPassphrase = "Another-Stable4-Horse?"
)

func TestKeyCreateAndValidate(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	out, _, err := runCLI(t, []string{"key", "create"}, "", configPath,
		goodPassphrase+"\n"+goodPassphrase+"\n")
	if err != nil {
		t.Fatalf("key create: %v", err)
	}
	requireContains(t, out, "Protection enabled")
	requireContains(t, out, "Recovery token")

	out, _, err = runCLI(t, []string{"key", "validate"}, "", configPath, goodPassphrase+"\n")
	if err != nil {
		t.Fatalf("key validate: %v", err)
	}
	requireContains(t, out, "Passphrase valid")

	out, _, err = runCLI(t, []string{"key", "autostart"}, "", configPath, "")
	if err != nil {
		t.Fatalf("key autostart: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatal("expected autostart key output")
	}
}

func TestKeyCreateRejectsWeakPassphrase(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	_, _, err := runCLI(t, []string{"key", "create"}, "", configPath, "weak\nweak\n")
	if code := exitCodeOf(t, err); code != exitKeyComplexity {
		t.Fatalf("exit code = %d, want %d", code, exitKeyComplexity)
	}
}

func TestKeyCreateMismatchedConfirmation(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	_, _, err := runCLI(t, []string{"key", "create"}, "", configPath,
		goodPassphrase+"\n"+nextPassphrase+"\n")
	if code := exitCodeOf(t, err); code != exitKeyDenied {
		t.Fatalf("exit code = %d, want %d", code, exitKeyDenied)
	}
}

func TestKeyValidateFailureStartsCooldown(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	if _, _, err := runCLI(t, []string{"key", "create"}, "", configPath,
		goodPassphrase+"\n"+goodPassphrase+"\n"); err != nil {
		t.Fatalf("key create: %v", err)
	}

	_, _, err := runCLI(t, []string{"key", "validate"}, "", configPath, "Wrong-Passphrase9!\n")
	if code := exitCodeOf(t, err); code != exitKeyDenied {
		t.Fatalf("exit code = %d, want %d", code, exitKeyDenied)
	}
	if !strings.Contains(err.Error(), "attempt 1") {
		t.Fatalf("error %q does not report the attempt count", err.Error())
	}

	out, _, err := runCLI(t, []string{"key", "lock-info"}, "", configPath, "")
	if err != nil {
		t.Fatalf("key lock-info: %v", err)
	}
	requireContains(t, out, "Failed attempts")
	requireContains(t, out, "1")

	// Still inside the first cooldown window; a second attempt is refused
	// without consuming another attempt.
	_, _, err = runCLI(t, []string{"key", "validate"}, "", configPath, goodPassphrase+"\n")
	if code := exitCodeOf(t, err); code != exitKeyDenied {
		t.Fatalf("exit code = %d, want %d", code, exitKeyDenied)
	}
	if !strings.Contains(err.Error(), "locked out") {
		t.Fatalf("error %q does not mention the lockout", err.Error())
	}
}

func TestKeyChangeWithRecoveryToken(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	out, _, err := runCLI(t, []string{"key", "create"}, "", configPath,
		goodPassphrase+"\n"+goodPassphrase+"\n")
	if err != nil {
		t.Fatalf("key create: %v", err)
	}
	token := recoveryTokenFrom(t, out)

	out, _, err = runCLI(t, []string{"key", "change", "--recovery"}, "", configPath,
		token+"\n"+nextPassphrase+"\n"+nextPassphrase+"\n")
	if err != nil {
		t.Fatalf("key change --recovery: %v", err)
	}
	requireContains(t, out, "Passphrase changed")
	fresh := recoveryTokenFrom(t, out)
	if fresh == token {
		t.Fatal("recovery token was not rotated")
	}

	out, _, err = runCLI(t, []string{"key", "validate"}, "", configPath, nextPassphrase+"\n")
	if err != nil {
		t.Fatalf("key validate after change: %v", err)
	}
	requireContains(t, out, "Passphrase valid")
}

func TestKeyChangeWithCurrentPassphrase(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	if _, _, err := runCLI(t, []string{"key", "create"}, "", configPath,
		goodPassphrase+"\n"+goodPassphrase+"\n"); err != nil {
		t.Fatalf("key create: %v", err)
	}

	out, _, err := runCLI(t, []string{"key", "change"}, "", configPath,
		goodPassphrase+"\n"+nextPassphrase+"\n"+nextPassphrase+"\n")
	if err != nil {
		t.Fatalf("key change: %v", err)
	}
	requireContains(t, out, "Passphrase changed")
}

func TestKeyRecordFail(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	out, _, err := runCLI(t, []string{"key", "record-fail"}, "", configPath, "")
	if err != nil {
		t.Fatalf("key record-fail: %v", err)
	}
	requireContains(t, out, "Attempt 1 of 12")
	requireContains(t, out, "locked for 5m0s")
}

func TestKeyValidateWithoutProtection(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	_, _, err := runCLI(t, []string{"key", "validate"}, "", configPath, goodPassphrase+"\n")
	if code := exitCodeOf(t, err); code != exitKeyDenied {
		t.Fatalf("exit code = %d, want %d", code, exitKeyDenied)
	}
}

func TestKeyAutostartWithoutProtection(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	_, _, err := runCLI(t, []string{"key", "autostart"}, "", configPath, "")
	if code := exitCodeOf(t, err); code != exitKeyDenied {
		t.Fatalf("exit code = %d, want %d", code, exitKeyDenied)
	}
}
