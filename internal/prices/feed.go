// Package prices simulates read-only market data with a bounded random walk.
package prices

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cryptoearn/cryptoearn/internal/logging"
)

// MaxStepPercent bounds the per-tick move in either direction.
const MaxStepPercent = 5.0

// Quote is the latest price of an asset and the percentage move that produced it.
type Quote struct {
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

// DefaultQuotes is the starting market.
func DefaultQuotes() map[string]Quote {
	return map[string]Quote{
		"bitcoin":   {Price: 45000, Change: 2.5},
		"ethereum":  {Price: 3200, Change: -1.2},
		"cardano":   {Price: 0.85, Change: 4.1},
		"solana":    {Price: 120, Change: -0.8},
		"polygon":   {Price: 1.2, Change: 3.2},
		"chainlink": {Price: 18.5, Change: 1.8},
	}
}

// Feed holds the simulated market.
type Feed struct {
	mu       sync.RWMutex
	quotes   map[string]Quote
	interval time.Duration
	random   func() float64
	logger   *slog.Logger
}

// Option customises a Feed.
type Option func(*Feed)

// WithRandom replaces the uniform [0,1) source.
func WithRandom(fn func() float64) Option {
	return func(f *Feed) { f.random = fn }
}

// WithQuotes replaces the starting market.
func WithQuotes(q map[string]Quote) Option {
	return func(f *Feed) { f.quotes = q }
}

// NewFeed creates a feed that moves every interval once Run is called.
func NewFeed(interval time.Duration, logger *slog.Logger, opts ...Option) *Feed {
	f := &Feed{
		quotes:   DefaultQuotes(),
		interval: interval,
		random:   rand.Float64,
		logger:   logging.Component(logger, "prices"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Tick moves every asset by a uniform percentage in [-MaxStepPercent, +MaxStepPercent).
func (f *Feed) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for asset, q := range f.quotes {
		step := (f.random() - 0.5) * 2 * MaxStepPercent
		f.quotes[asset] = Quote{Price: q.Price * (1 + step/100), Change: step}
	}
}

// Snapshot returns a copy of the current quotes.
func (f *Feed) Snapshot() map[string]Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]Quote, len(f.quotes))
	for k, v := range f.quotes {
		out[k] = v
	}
	return out
}

// Run ticks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	if f.interval <= 0 {
		return
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	f.logger.Info("price feed started", slog.Duration("interval", f.interval))
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("price feed stopped")
			return
		case <-ticker.C:
			f.Tick()
		}
	}
}
