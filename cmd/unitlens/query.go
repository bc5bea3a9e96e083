package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"unitlens/pkg/executor/runner"
	"unitlens/pkg/systemd"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the unit summary (systemctl --no-pager)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.inspector().SystemSummary(cmd.Context())
			return printResult(cmd, out, err)
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <unit>",
		Short: "Print the status of one unit (systemctl status <unit>)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := systemd.DefaultLimits().ValidateUnit(args[0]); err != nil {
				return err
			}
			out, err := a.inspector().UnitStatus(cmd.Context(), args[0])
			return printResult(cmd, out, err)
		},
	}
}

func newLogsCmd(a *app) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "logs <unit>",
		Short: "Print the journal of one unit (journalctl --no-pager --unit <unit>)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limits := systemd.DefaultLimits()
			if err := limits.ValidateUnit(args[0]); err != nil {
				return err
			}
			if err := limits.ValidateSince(since); err != nil {
				return err
			}
			out, err := a.inspector().UnitLogs(cmd.Context(), args[0], since)
			return printResult(cmd, out, err)
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only entries newer than this journalctl time expression")
	return cmd
}

// printResult writes successful output to stdout. A failed command has its
// output copied to stderr and its exit status passed on.
func printResult(cmd *cobra.Command, out string, err error) error {
	if err == nil {
		_, werr := fmt.Fprint(cmd.OutOrStdout(), out)
		return werr
	}

	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) {
		fmt.Fprint(cmd.ErrOrStderr(), cmdErr.Output)
		return &exitError{code: commandExitCode(cmdErr)}
	}
	return err
}

// commandExitCode follows the shell convention of 128+n for signals.
func commandExitCode(e *runner.CommandError) int {
	if e.Signal != "" {
		if n := unix.SignalNum(e.Signal); n != 0 {
			return 128 + int(n)
		}
	}
	if e.ExitCode <= 0 {
		return 1
	}
	return e.ExitCode
}
