package keymgr

import (
	"errors"
	"unicode"
)

// ErrComplexity indicates a candidate passphrase or PIN fails the policy.
// Recoverable: the user retries with a stronger secret.
var ErrComplexity = errors.New("passphrase or PIN does not meet complexity requirements")

// CheckSecret accepts either a full passphrase (at least 12 characters with
// upper, lower, digit, and symbol, no whitespace) or a 4-8 digit PIN.
func CheckSecret(secret string) error {
	if pinOK(secret) || passphraseOK(secret) {
		return nil
	}
	return ErrComplexity
}

func passphraseOK(p string) bool {
	if len(p) < 12 {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

func pinOK(p string) bool {
	if len(p) < 4 || len(p) > 8 {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
