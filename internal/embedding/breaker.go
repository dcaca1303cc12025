package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rcliao/lore-memory/internal/model"
)

// BreakerConfig configures the circuit breaker around a remote embedder.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// BreakerEmbedder fails fast with model.ErrEmbeddingUnavailable once the
// inner embedder has failed MaxFailures times in a row.
type BreakerEmbedder struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker[Vector]
}

// NewBreakerEmbedder wraps inner with a circuit breaker.
func NewBreakerEmbedder(inner Embedder, cfg BreakerConfig, logger *slog.Logger) *BreakerEmbedder {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[Vector](gobreaker.Settings{
		Name:        "embedder",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &BreakerEmbedder{inner: inner, breaker: cb}
}

func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	vec, err := b.breaker.Execute(func() (Vector, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

func (b *BreakerEmbedder) Dims() int { return b.inner.Dims() }

// State reports the breaker state ("closed", "half-open", "open").
func (b *BreakerEmbedder) State() string {
	return b.breaker.State().String()
}
