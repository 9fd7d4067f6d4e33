package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"hindsight/internal/daemonrun"
	"hindsight/internal/ipc"
	"hindsight/internal/status"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "run",
		Short:       "Run the capture daemon in the foreground",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			code := daemonrun.Run(ctx.configPath())
			if code != daemonrun.ExitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and last-capture state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return fmt.Errorf("query status: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatus(resp))
				return nil
			})
		},
	}
}

func renderStatus(resp *ipc.StatusResponse) string {
	rows := [][]string{
		{"Running", yesNo(resp.Running)},
		{"PID", strconv.Itoa(resp.PID)},
		{"Lock file", resp.LockPath},
	}
	if resp.HasStatus {
		rows = append(rows, captureRows(resp.Capture)...)
	} else {
		rows = append(rows, []string{"Last capture", "none yet"})
	}
	return renderTable(
		[]string{"Field", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	)
}

func captureRows(rec status.Capture) [][]string {
	rows := [][]string{
		{"Last capture", rec.LastCaptureUTC.Local().Format(time.RFC3339)},
		{"Window", rec.WindowTitle},
		{"Backend", rec.CaptureBackend},
		{"Captures", strconv.Itoa(rec.CaptureCount)},
		{"Interval", fmt.Sprintf("%.1fs", rec.IntervalSec)},
		{"Duplicate", yesNo(rec.Duplicate)},
	}
	if rec.WindowBBox != nil {
		rows = append(rows, []string{"Geometry", rec.WindowBBox.String()})
	}
	if rec.Paused {
		rows = append(rows, []string{"Paused", rec.PauseReason})
	}
	if rec.Error != "" {
		rows = append(rows, []string{"Error", rec.Error})
	}
	return rows
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return fmt.Errorf("stop daemon: %w", err)
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon was not running")
				}
				return nil
			})
		},
	}
}
