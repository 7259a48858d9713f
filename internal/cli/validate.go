package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xdung24/restload/internal/config"
	"github.com/xdung24/restload/internal/output"
	"github.com/xdung24/restload/internal/scenario"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check scenario files for errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			invalid := 0

			for _, path := range args {
				file, err := config.LoadFile(path)
				if err == nil {
					_, err = file.ToScenario(scenario.Target{})
				}
				if err != nil {
					invalid++
					fmt.Fprintf(w, "%s %s: %v\n", output.ErrorIcon(true), path, err)
					continue
				}
				fmt.Fprintf(w, "%s %s: %s (%d request(s) per iteration)\n",
					output.SuccessIcon(true), path, file.Name, len(file.Requests))
			}

			if invalid > 0 {
				return &ExitCodeError{Code: ExitError, Err: fmt.Errorf("%d of %d file(s) invalid", invalid, len(args))}
			}
			return nil
		},
	}
}
