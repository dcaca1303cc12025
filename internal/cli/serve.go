package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/lore-memory/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP management API",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")

	cfg := loadConfig()
	if addr != "" {
		cfg.Server.Addr = addr
	}
	logger := newLogger(cfg)

	e, err := openEngine(cfg, logger)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.World.AutoSeed {
		res, err := e.Seed(ctx, loadSeed(cfg.World.SeedFile), false)
		if err != nil {
			exitErr("seed", err)
		}
		if res.Applied {
			logger.Info("seeded empty store", "memories", res.Memories, "world", res.World)
		}
	}

	srv := server.New(e, logger)
	if err := srv.Run(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout); err != nil {
		exitErr("serve", err)
	}
}
