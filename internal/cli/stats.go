package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/lore-memory/internal/model"
	"github.com/rcliao/lore-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory and database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	e := mustOpen()
	defer e.Close()

	stats, err := e.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	info, err := e.Info(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	printJSON(cmd.OutOrStdout(), struct {
		*model.MemoryStats
		DB *store.DBInfo `json:"db"`
	}{stats, info})
}
