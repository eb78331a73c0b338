package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newMemoryCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memory",
		Short: "Query the persistent memory store (requires --memory)",
	}

	suggest := &cobra.Command{
		Use:   "suggest <query>",
		Short: "Suggest relevant memory records for free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbArgs := []string{"--query", strings.Join(args, " ")}
			if topK, _ := cmd.Flags().GetInt("top-k"); topK > 0 {
				verbArgs = append(verbArgs, "--top-k", strconv.Itoa(topK))
			}
			return runVerb(cmd.Context(), "memory_suggest", verbArgs)
		},
	}
	suggest.Flags().Int("top-k", 0, "maximum number of candidates to return")

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch memory records by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			var verbArgs []string
			if id, _ := cmd.Flags().GetString("id"); id != "" {
				verbArgs = append(verbArgs, "--id", id)
			}
			if ids, _ := cmd.Flags().GetString("ids"); ids != "" {
				verbArgs = append(verbArgs, "--ids", ids)
			}
			return runVerb(cmd.Context(), "memory_fetch", verbArgs)
		},
	}
	fetch.Flags().String("id", "", "a single memory record id")
	fetch.Flags().String("ids", "", "a comma-separated list of memory record ids")

	settings := &cobra.Command{
		Use:   "settings [get|set-json <json>]",
		Short: "Read or replace the memory subsystem's settings",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd.Context(), "memory.settings", args)
		},
	}

	root.AddCommand(suggest, fetch, settings)
	return root
}
