package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/origin-crawler/internal/fetcher/graph"
)

// newScenariosCmd lists the built-in test graphs.
func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List built-in test scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range graph.Scenarios() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
