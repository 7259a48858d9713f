// Package cli implements the restload command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Exit codes. Threshold failures use 99 and externally aborted runs 105, as
// k6 does, so CI scripts written for either tool read them the same way.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitThresholdsFailed = 99
	ExitAborted          = 105
)

// ExitCodeError carries a process exit code out of a command.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	logLevel string
	noColor  bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "restload",
		Short:   "Ramp virtual users against a user REST API and gate on thresholds",
		Version: version,
		Long: `restload runs load-test scenarios against an HTTP user API.

A scenario ramps virtual users through a list of stages. Each user repeatedly
runs one iteration (a GET or an upsert POST of /ns/users/{id}) and every
request is recorded. At the end of the run the scenario's thresholds, such as
"http_req_duration: p(99) < 1000", decide whether the run passed.

Built-in scenarios: get-user, upsert-user. Scenario files (YAML or JSON) can
be run with --file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newRunCmd(opts),
		newListCmd(),
		newInspectCmd(opts),
		newValidateCmd(),
	)

	return cmd
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the running command.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, NewRootCmd(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitError
}
