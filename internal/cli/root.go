// Package cli implements the lore-memory CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/lore-memory/internal/config"
	"github.com/rcliao/lore-memory/internal/embedding"
	"github.com/rcliao/lore-memory/internal/engine"
	"github.com/rcliao/lore-memory/internal/index"
	"github.com/rcliao/lore-memory/internal/logging"
	"github.com/rcliao/lore-memory/internal/model"
)

var (
	dbPath     string
	configPath string
	formatFlag string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "lore-memory",
	Short: "Long-term memory for a fantasy chatbot",
	Long:  "Typed, embedded memories and an append-only world timeline for a dialogue model. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $LORE_MEMORY_DB or ~/.lore-memory/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $LORE_MEMORY_CONFIG or ~/.lore-memory/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		exitErr("logger", err)
	}
	return logger
}

// openEngine builds the engine described by the loaded configuration.
func openEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	idx, err := index.New(cfg.Index.Backend)
	if err != nil {
		return nil, err
	}
	opts := cfg.EngineOptions()
	opts.Embedder = emb
	opts.Index = idx
	opts.Logger = logger
	return engine.Open(cfg.DBPath, opts)
}

// mustOpen loads config and opens the engine, exiting on failure.
func mustOpen() *engine.Engine {
	cfg := loadConfig()
	e, err := openEngine(cfg, newLogger(cfg))
	if err != nil {
		exitErr("open engine", err)
	}
	return e
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(w io.Writer, v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

func textFormat() bool { return formatFlag == "text" }

func printMemories(w io.Writer, mems []model.Memory) {
	if !textFormat() {
		printJSON(w, mems)
		return
	}
	for _, m := range mems {
		fmt.Fprintln(w, memoryLine(m))
	}
}

func memoryLine(m model.Memory) string {
	if m.Name == "" {
		return fmt.Sprintf("%s  [%s] %s", m.ID, m.Type, m.Content)
	}
	return fmt.Sprintf("%s  [%s] %s: %s", m.ID, m.Type, m.Name, m.Content)
}

func printWorld(w io.Writer, entries []model.WorldStateEntry) {
	if !textFormat() {
		printJSON(w, entries)
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s = %s\n", e.RecordedAt.Format("2006-01-02 15:04:05"), e.Key, e.Value)
	}
}

// readContent takes content from args, or from stdin when it is piped.
func readContent(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " "))
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return strings.TrimSpace(string(b))
	}
	return ""
}
