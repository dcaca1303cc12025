package embedding

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config selects and tunes an embedding provider.
type Config struct {
	Provider  string        `yaml:"provider"` // hash | ollama | openai
	Model     string        `yaml:"model"`
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"-"`
	Dims      int           `yaml:"dims"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	CacheSize int64         `yaml:"cache_size"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// New builds the configured embedder. Remote providers are wrapped in a
// circuit breaker; every provider is wrapped in a vector cache unless
// CacheSize is negative.
func New(cfg Config, logger *slog.Logger) (Embedder, error) {
	opts := HTTPOptions{Timeout: cfg.Timeout, RateLimit: cfg.RateLimit}

	var e Embedder
	switch strings.ToLower(cfg.Provider) {
	case "", "hash":
		e = NewHashEmbedder(cfg.Dims)
	case "ollama":
		e = NewBreakerEmbedder(NewOllamaEmbedder(cfg.URL, cfg.Model, opts), cfg.Breaker, logger)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		e = NewBreakerEmbedder(NewOpenAIEmbedder(cfg.URL, cfg.APIKey, cfg.Model, cfg.Dims, opts), cfg.Breaker, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CacheSize < 0 {
		return e, nil
	}
	return NewCachedEmbedder(e, cfg.CacheSize)
}
