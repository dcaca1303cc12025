package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/lore-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Run:   runList,
	}

	cmd.Flags().StringP("type", "t", "", "Filter by type")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	typStr, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")

	e := mustOpen()
	defer e.Close()

	var (
		memories []model.Memory
		err      error
	)
	if typStr != "" {
		typ, perr := model.ParseType(typStr)
		if perr != nil {
			exitErr("list", perr)
		}
		memories, err = e.GetByType(cmd.Context(), typ, limit)
	} else {
		memories, err = e.List(cmd.Context(), limit)
	}
	if err != nil {
		exitErr("list", err)
	}
	printMemories(cmd.OutOrStdout(), memories)
}
