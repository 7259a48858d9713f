package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xdung24/restload/internal/scenario"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-14s %-10s %-6s %s\n", "NAME", "DURATION", "VUS", "DESCRIPTION")
			for _, name := range scenario.Names() {
				sc, err := scenario.New(name, scenario.DefaultTarget())
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-14s %-10s %-6d %s\n",
					sc.Name, sc.Options.TotalDuration(), sc.Options.PeakVUs(), sc.Description)
			}
			return nil
		},
	}
}
