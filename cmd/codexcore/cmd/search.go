package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index, applying the confidence floor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd.Context(), "search-code", []string{strings.Join(args, " ")})
		},
	}

	confidence := &cobra.Command{
		Use:   "confidence [get|set <float>]",
		Short: "Read or write the search confidence floor",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd.Context(), "search.confidence", args)
		},
	}

	search.AddCommand(confidence)
	return search
}
