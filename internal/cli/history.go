package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history [session]",
		Short: "Show logged turns of a session, oldest first",
		Args:  cobra.ExactArgs(1),
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 20, "Number of most recent turns")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	e := mustOpen()
	defer e.Close()

	turns, err := e.History(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("history", err)
	}
	if !textFormat() {
		printJSON(cmd.OutOrStdout(), turns)
		return
	}
	for _, t := range turns {
		fmt.Fprintf(cmd.OutOrStdout(), "> %s\n%s\n\n", t.UserText, t.ResponseText)
	}
}
