package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	worldCmd := &cobra.Command{
		Use:   "world",
		Short: "World-state timeline",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Most recent entries across all keys, newest first",
		Run:   runWorldList,
	}
	listCmd.Flags().IntP("limit", "l", 20, "Max results")

	currentCmd := &cobra.Command{
		Use:   "current",
		Short: "Latest value of every key",
		Run:   runWorldCurrent,
	}

	historyCmd := &cobra.Command{
		Use:   "history [key]",
		Short: "Recorded values of one key, newest first",
		Args:  cobra.ExactArgs(1),
		Run:   runWorldHistory,
	}
	historyCmd.Flags().IntP("limit", "l", 20, "Max results")

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Append an observation to the timeline",
		Args:  cobra.MinimumNArgs(2),
		Run:   runWorldSet,
	}

	worldCmd.AddCommand(listCmd, currentCmd, historyCmd, setCmd)
	RootCmd.AddCommand(worldCmd)
}

func runWorldList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	e := mustOpen()
	defer e.Close()

	entries, err := e.WorldSnapshot(cmd.Context(), limit)
	if err != nil {
		exitErr("world list", err)
	}
	printWorld(cmd.OutOrStdout(), entries)
}

func runWorldCurrent(cmd *cobra.Command, args []string) {
	e := mustOpen()
	defer e.Close()

	entries, err := e.CurrentWorld(cmd.Context())
	if err != nil {
		exitErr("world current", err)
	}
	printWorld(cmd.OutOrStdout(), entries)
}

func runWorldHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	e := mustOpen()
	defer e.Close()

	entries, err := e.WorldHistory(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("world history", err)
	}
	printWorld(cmd.OutOrStdout(), entries)
}

func runWorldSet(cmd *cobra.Command, args []string) {
	e := mustOpen()
	defer e.Close()

	entry, err := e.AppendWorld(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		exitErr("world set", err)
	}
	printJSON(cmd.OutOrStdout(), entry)
}
