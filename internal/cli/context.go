package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble relevant memories and world state for a prompt",
		Long:  "Rank memories against the query, then greedily pack them into a token budget alongside the current world state.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("budget", "b", 1000, "Max tokens in output")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	query := strings.Join(args, " ")

	e := mustOpen()
	defer e.Close()

	result, err := e.Context(cmd.Context(), query, budget)
	if err != nil {
		exitErr("context", err)
	}
	if textFormat() {
		fmt.Fprint(cmd.OutOrStdout(), result.String())
		return
	}
	printJSON(cmd.OutOrStdout(), result)
}
