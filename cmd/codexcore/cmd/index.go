package cmd

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "index",
		Short: "Build, query, and inspect the project's semantic index",
	}

	build := &cobra.Command{
		Use:   "build",
		Short: "Build (or rebuild) the project's semantic index",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonMode, _ := cmd.Flags().GetBool("json")
			if !cmd.Flags().Changed("json") {
				jsonMode = !isTTY(os.Stdout)
			}
			var verbArgs []string
			if jsonMode {
				verbArgs = append(verbArgs, "--json")
			}
			return runVerb(cmd.Context(), "index.build", verbArgs)
		},
	}
	build.Flags().Bool("json", false, "print the build summary as JSON instead of a summary line (default: JSON when stdout isn't a terminal)")

	query := &cobra.Command{
		Use:   "query <text>",
		Short: "Query the semantic index, returning ranked hits",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbArgs := append([]string{}, args...)
			if topK, _ := cmd.Flags().GetInt("top-k"); topK > 0 {
				verbArgs = append(verbArgs, "--top-k", strconv.Itoa(topK))
			}
			return runVerb(cmd.Context(), "index.query", verbArgs)
		},
	}
	query.Flags().Int("top-k", 0, "number of ranked hits to return")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the index manifest and build analytics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd.Context(), "index.status", nil)
		},
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the persisted index for internal consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd.Context(), "index.verify", nil)
		},
	}

	clean := &cobra.Command{
		Use:   "clean",
		Short: "Remove the project's persisted index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd.Context(), "index.clean", nil)
		},
	}

	root.AddCommand(build, query, status, verify, clean)
	return root
}
