package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/lore-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find the memories most relevant to a query",
		Long:  "Rank memories by embedding similarity to the query. With --keyword, match names and content by text instead.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("type", "t", "", "Filter by type")
	cmd.Flags().IntP("limit", "l", 5, "Max results")
	cmd.Flags().Bool("keyword", false, "Keyword search instead of semantic ranking")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	typStr, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")
	keyword, _ := cmd.Flags().GetBool("keyword")
	query := strings.Join(args, " ")

	var typ model.MemoryType
	if typStr != "" {
		t, err := model.ParseType(typStr)
		if err != nil {
			exitErr("search", err)
		}
		typ = t
	}

	e := mustOpen()
	defer e.Close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if keyword {
		results, err := e.Search(ctx, query, typ, limit)
		if err != nil {
			exitErr("search", err)
		}
		printMemories(out, results)
		return
	}

	var (
		results []model.ScoredMemory
		err     error
	)
	if typ == "" {
		results, err = e.RetrieveRelevant(ctx, query, limit)
	} else {
		results, err = e.RetrieveRelevantOfType(ctx, query, typ, limit)
	}
	if err != nil {
		exitErr("search", err)
	}

	if !textFormat() {
		printJSON(out, results)
		return
	}
	for _, r := range results {
		fmt.Fprintf(out, "%.3f  %s\n", r.Similarity, memoryLine(r.Memory))
	}
}
