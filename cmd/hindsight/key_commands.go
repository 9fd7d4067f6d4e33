package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hindsight/internal/keymgr"
)

// Exit codes for key subcommands.
const (
	exitKeyDenied      = 1
	exitKeyComplexity  = 3
	exitKeyNoAutostart = 5
)

func newKeyCommand(ctx *commandContext) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage passphrase protection of the data key",
	}

	keyCmd.AddCommand(newKeyCreateCommand(ctx))
	keyCmd.AddCommand(newKeyValidateCommand(ctx))
	keyCmd.AddCommand(newKeyChangeCommand(ctx))
	keyCmd.AddCommand(newKeyLockInfoCommand(ctx))
	keyCmd.AddCommand(newKeyRecordFailCommand(ctx))
	keyCmd.AddCommand(newKeyAutostartCommand(ctx))

	return keyCmd
}

func newKeyCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Enable passphrase protection with a fresh data key",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := ctx.keyManager()
			if err != nil {
				return err
			}
			if keys.Protected() {
				return exitWith(exitKeyDenied, "protection is already enabled; use `hindsight key change` to rotate the passphrase")
			}

			in := bufio.NewReader(cmd.InOrStdin())
			passphrase, err := readSecret(cmd, in, "New passphrase or PIN: ")
			if err != nil {
				return err
			}
			confirm, err := readSecret(cmd, in, "Repeat to confirm: ")
			if err != nil {
				return err
			}
			if passphrase != confirm {
				return exitWith(exitKeyDenied, "passphrases do not match")
			}

			token, err := keys.CreateProtection(passphrase)
			if errors.Is(err, keymgr.ErrComplexity) {
				return exitWith(exitKeyComplexity, "rejected: %v", err)
			}
			if err != nil {
				return fmt.Errorf("create protection: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Protection enabled.")
			printRecoveryToken(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newKeyValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a passphrase against the wrapped key",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := ctx.keyManager()
			if err != nil {
				return err
			}
			if !keys.Protected() {
				return exitWith(exitKeyDenied, "protection is not enabled")
			}
			if err := checkCooldown(keys); err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			passphrase, err := readSecret(cmd, in, "Passphrase or PIN: ")
			if err != nil {
				return err
			}
			if keys.ValidatePassphrase(passphrase) {
				fmt.Fprintln(cmd.OutOrStdout(), "Passphrase valid.")
				return nil
			}
			return recordDenied(keys)
		},
	}
}

func newKeyChangeCommand(ctx *commandContext) *cobra.Command {
	var useRecovery bool

	cmd := &cobra.Command{
		Use:   "change",
		Short: "Rewrap the data key under a new passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := ctx.keyManager()
			if err != nil {
				return err
			}
			if !keys.Protected() && !useRecovery {
				return exitWith(exitKeyDenied, "protection is not enabled")
			}
			if err := checkCooldown(keys); err != nil {
				return err
			}

			prompt := "Current passphrase or PIN: "
			if useRecovery {
				prompt = "Recovery token: "
			}
			in := bufio.NewReader(cmd.InOrStdin())
			authSecret, err := readSecret(cmd, in, prompt)
			if err != nil {
				return err
			}
			newSecret, err := readSecret(cmd, in, "New passphrase or PIN: ")
			if err != nil {
				return err
			}
			confirm, err := readSecret(cmd, in, "Repeat to confirm: ")
			if err != nil {
				return err
			}
			if newSecret != confirm {
				return exitWith(exitKeyDenied, "passphrases do not match")
			}

			token, err := keys.ChangePassphrase(authSecret, newSecret, useRecovery)
			switch {
			case errors.Is(err, keymgr.ErrComplexity):
				return exitWith(exitKeyComplexity, "rejected: %v", err)
			case errors.Is(err, keymgr.ErrAutostartMissing):
				return exitWith(exitKeyNoAutostart, "recovery unavailable: %v", err)
			case errors.Is(err, keymgr.ErrAuthFailed):
				return recordDenied(keys)
			case err != nil:
				return fmt.Errorf("change passphrase: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Passphrase changed.")
			printRecoveryToken(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useRecovery, "recovery", false, "Authorize with the recovery token instead of the current passphrase")

	return cmd
}

func newKeyLockInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lock-info",
		Short: "Show the failed-attempt lockout state",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := ctx.keyManager()
			if err != nil {
				return err
			}
			state := keys.LockInfo()

			rows := [][]string{
				{"Failed attempts", strconv.Itoa(state.Fails)},
				{"Last failure", formatOptionalTime(state.LastFail)},
				{"Locked until", formatOptionalTime(state.LockUntil)},
				{"Locked now", yesNo(state.Locked(time.Now()))},
				{"Destructive reset", yesNo(state.Reset)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newKeyRecordFailCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "record-fail",
		Short: "Record a failed unlock attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := ctx.keyManager()
			if err != nil {
				return err
			}
			total, lockSeconds, err := keys.RecordFailedAttempt()
			if err != nil {
				return fmt.Errorf("record failed attempt: %w", err)
			}
			out := cmd.OutOrStdout()
			if lockSeconds == nil {
				fmt.Fprintf(out, "Attempt %d of %d: maximum reached, protected material destroyed\n", total, keymgr.MaxTotalAttempts)
				return nil
			}
			fmt.Fprintf(out, "Attempt %d of %d: locked for %s\n", total, keymgr.MaxTotalAttempts, formatSeconds(*lockSeconds))
			return nil
		},
	}
}

func newKeyAutostartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "autostart",
		Short: "Print the stored autostart key",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := ctx.keyManager()
			if err != nil {
				return err
			}
			key, ok := keys.AutostartKey()
			if !ok {
				return exitWith(exitKeyDenied, "no autostart key stored")
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

// checkCooldown denies the operation while a lockout window is active.
func checkCooldown(keys *keymgr.Manager) error {
	state := keys.LockInfo()
	now := time.Now()
	if state.Locked(now) {
		remaining := time.Until(*state.LockUntil).Round(time.Second)
		return exitWith(exitKeyDenied, "locked out for another %s (%d failed attempts)", remaining, state.Fails)
	}
	return nil
}

// recordDenied registers the failure and reports the resulting cooldown.
func recordDenied(keys *keymgr.Manager) error {
	total, lockSeconds, err := keys.RecordFailedAttempt()
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	if lockSeconds == nil {
		return exitWith(exitKeyDenied, "invalid passphrase; attempt %d of %d, protected material destroyed", total, keymgr.MaxTotalAttempts)
	}
	return exitWith(exitKeyDenied, "invalid passphrase; attempt %d of %d, locked for %s", total, keymgr.MaxTotalAttempts, formatSeconds(*lockSeconds))
}

func printRecoveryToken(out io.Writer, token string) {
	emphasis := color.New(color.FgYellow, color.Bold)
	fmt.Fprintln(out, "Recovery token (shown once, store it safely):")
	emphasis.Fprintf(out, "  %s\n", token)
}

func readSecret(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", exitWith(exitKeyDenied, "empty input")
	}
	return secret, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}

func formatSeconds(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}
