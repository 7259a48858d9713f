package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xdung24/restload/internal/output"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	var (
		target targetFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "inspect [scenario]",
		Short: "Show the resolved options and requests of a scenario without sending traffic",
		Long: `Show a scenario's stages, thresholds and the requests of one iteration.

--format json or yaml prints the scenario as a scenario file, which can be
edited and run with 'restload run --file'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}

			sc, _, err := target.load(args)
			if err != nil {
				return err
			}

			text, err := output.FormatScenario(sc, f, root.noColor)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			if len(text) > 0 && text[len(text)-1] != '\n' {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}

	target.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")

	return cmd
}
