package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/lore-memory/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate an empty store with starting lore",
		Long:  "Write the seed file's memories and world state. Without --force nothing happens if the store already holds memories.",
		Run:   runSeed,
	}

	cmd.Flags().String("file", "", "YAML seed file (default: world.seed_file or the built-in seed)")
	cmd.Flags().Bool("force", false, "Seed even if the store is not empty")

	RootCmd.AddCommand(cmd)
}

func runSeed(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")
	force, _ := cmd.Flags().GetBool("force")

	cfg := loadConfig()
	if file == "" {
		file = cfg.World.SeedFile
	}
	seed := loadSeed(file)

	e, err := openEngine(cfg, newLogger(cfg))
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	res, err := e.Seed(cmd.Context(), seed, force)
	if err != nil {
		exitErr("seed", err)
	}
	printJSON(cmd.OutOrStdout(), res)
}

func loadSeed(file string) *engine.Seed {
	if file == "" {
		return engine.DefaultSeed()
	}
	seed, err := engine.LoadSeed(file)
	if err != nil {
		exitErr("load seed", err)
	}
	return seed
}
