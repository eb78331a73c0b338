package cmd

import "github.com/spf13/cobra"

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List every command verb registered on the command registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd.Context(), "commands.list", nil)
		},
	}
}
