// Package config loads lore-memory settings from defaults, an optional YAML
// file, a .env file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/lore-memory/internal/embedding"
	"github.com/rcliao/lore-memory/internal/engine"
	"github.com/rcliao/lore-memory/internal/extract"
	"github.com/rcliao/lore-memory/internal/index"
)

// Config is the top-level application configuration.
type Config struct {
	DBPath     string           `yaml:"db_path"`
	Log        LogConfig        `yaml:"log"`
	Embedding  embedding.Config `yaml:"embedding"`
	Index      IndexConfig      `yaml:"index"`
	Extraction ExtractionConfig `yaml:"extraction"`
	World      WorldConfig      `yaml:"world"`
	Server     ServerConfig     `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type IndexConfig struct {
	Backend string `yaml:"backend"` // flat | chromem
}

// ExtractionConfig tunes the per-turn extraction pipeline.
type ExtractionConfig struct {
	DedupThreshold float64 `yaml:"dedup_threshold"`
	MaxCandidates  int     `yaml:"max_candidates"`
	AdvanceClock   bool    `yaml:"advance_clock"`
}

// WorldConfig controls seeding of an empty store.
type WorldConfig struct {
	SeedFile string `yaml:"seed_file"` // empty means the built-in seed
	AutoSeed bool   `yaml:"auto_seed"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Dir returns the per-user data directory.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lore-memory")
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		DBPath: filepath.Join(Dir(), "memory.db"),
		Log:    LogConfig{Level: "info", Format: "text"},
		Embedding: embedding.Config{
			Provider:  "hash",
			Dims:      embedding.DefaultHashDims,
			Timeout:   engine.DefaultEmbedTimeout,
			CacheSize: 4096,
			Breaker:   embedding.BreakerConfig{MaxFailures: 3, Timeout: 30 * time.Second},
		},
		Index: IndexConfig{Backend: index.BackendFlat},
		Extraction: ExtractionConfig{
			DedupThreshold: engine.DefaultDedupThreshold,
			MaxCandidates:  extract.DefaultMaxCandidates,
		},
		World: WorldConfig{AutoSeed: true},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8765",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// $LORE_MEMORY_CONFIG and then DefaultPath are tried; a missing file at a
// default location is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("LORE_MEMORY_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv sets variables from a .env file without overriding the
// environment. A missing file is ignored.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides maps LORE_MEMORY_* and provider env vars onto cfg.
func ApplyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"LORE_MEMORY_DB":             &cfg.DBPath,
		"LORE_MEMORY_LOG_LEVEL":      &cfg.Log.Level,
		"LORE_MEMORY_LOG_FORMAT":     &cfg.Log.Format,
		"LORE_MEMORY_EMBED_PROVIDER": &cfg.Embedding.Provider,
		"LORE_MEMORY_EMBED_MODEL":    &cfg.Embedding.Model,
		"LORE_MEMORY_EMBED_URL":      &cfg.Embedding.URL,
		"LORE_MEMORY_INDEX":          &cfg.Index.Backend,
		"LORE_MEMORY_ADDR":           &cfg.Server.Addr,
		"LORE_MEMORY_SEED_FILE":      &cfg.World.SeedFile,
		"OPENAI_API_KEY":             &cfg.Embedding.APIKey,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && cfg.Embedding.URL == "" {
		cfg.Embedding.URL = v
	}
	if v := os.Getenv("LORE_MEMORY_DEDUP_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LORE_MEMORY_DEDUP_THRESHOLD: %w", err)
		}
		cfg.Extraction.DedupThreshold = f
	}
	if v := os.Getenv("LORE_MEMORY_ADVANCE_CLOCK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LORE_MEMORY_ADVANCE_CLOCK: %w", err)
		}
		cfg.Extraction.AdvanceClock = b
	}
	return nil
}

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

func (v *ValidationError) add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg and reports every problem at once.
func (c *Config) Validate() error {
	ve := &ValidationError{}
	if c.DBPath == "" {
		ve.add("db_path must not be empty")
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", "hash", "ollama":
	case "openai":
		if c.Embedding.APIKey == "" {
			ve.add("embedding.provider openai requires OPENAI_API_KEY")
		}
	default:
		ve.add("embedding.provider %q is not one of hash, ollama, openai", c.Embedding.Provider)
	}
	if c.Embedding.Dims < 0 {
		ve.add("embedding.dims must be >= 0")
	}
	if c.Embedding.RateLimit < 0 {
		ve.add("embedding.rate_limit must be >= 0")
	}
	switch c.Index.Backend {
	case "", index.BackendFlat, index.BackendChromem:
	default:
		ve.add("index.backend %q is not one of flat, chromem", c.Index.Backend)
	}
	if t := c.Extraction.DedupThreshold; t <= 0 || t > 1 {
		ve.add("extraction.dedup_threshold must be in (0, 1], got %v", t)
	}
	if c.Extraction.MaxCandidates <= 0 {
		ve.add("extraction.max_candidates must be > 0")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		ve.add("log.format %q is not one of text, json", c.Log.Format)
	}
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// EngineOptions translates the extraction settings into engine options.
// Embedder, Index and Logger are left for the caller to build.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		EmbedTimeout:   c.Embedding.Timeout,
		DedupThreshold: c.Extraction.DedupThreshold,
		MaxCandidates:  c.Extraction.MaxCandidates,
		AdvanceClock:   c.Extraction.AdvanceClock,
	}
}
