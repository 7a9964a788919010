// Package scheduler runs the background loops that keep the price cache
// warm and the database trimmed: a periodic batch refresh of every active
// stock's latest quote, and a daily retention sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/stockbot/market-data-service/internal/logging"
	"github.com/stockbot/market-data-service/internal/models"
)

const defaultBatchSize = 100

// PriceSource returns current quotes for a set of symbols, refreshing
// stale ones from the provider. *marketdata.Service satisfies it.
type PriceSource interface {
	GetPrices(ctx context.Context, symbols []string) (map[string]*models.PriceQuote, error)
}

// SymbolLister enumerates the stocks the refresh loop keeps warm.
// *database.DB satisfies it.
type SymbolLister interface {
	ListActiveSymbols() ([]string, error)
}

// Janitor deletes rows past their retention window. *marketdata.Service
// satisfies it.
type Janitor interface {
	CleanupOldData() error
}

// Alerter receives each refreshed quote. *alerts.Publisher satisfies it.
type Alerter interface {
	Publish(ctx context.Context, quote *models.PriceQuote) error
}

// Scheduler owns the refresh and cleanup loops.
type Scheduler struct {
	prices  PriceSource
	symbols SymbolLister
	janitor Janitor
	alerter Alerter
	logger  *logging.Logger

	refreshInterval time.Duration
	cleanupInterval time.Duration
	batchSize       int
}

// New creates a Scheduler. batchSize caps how many symbols go to the
// provider in one call; values below 1 fall back to the default.
func New(prices PriceSource, symbols SymbolLister, janitor Janitor, alerter Alerter, refreshInterval, cleanupInterval time.Duration, batchSize int, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewSilent()
	}
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	return &Scheduler{
		prices:          prices,
		symbols:         symbols,
		janitor:         janitor,
		alerter:         alerter,
		logger:          logger,
		refreshInterval: refreshInterval,
		cleanupInterval: cleanupInterval,
		batchSize:       batchSize,
	}
}

// Run blocks until ctx is cancelled, driving both loops from one
// goroutine so refresh and cleanup never overlap on the database.
// One refresh sweep runs immediately so a restart does not leave the
// cache cold for a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()
	cleanup := time.NewTicker(s.cleanupInterval)
	defer cleanup.Stop()

	s.refreshPrices(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-refresh.C:
			s.refreshPrices(ctx)
		case <-cleanup.C:
			s.runCleanup()
		}
	}
}

// refreshPrices pulls quotes for every active symbol in batches and hands
// each one to the alerter. A provider failure abandons the sweep; the
// next tick retries from scratch.
func (s *Scheduler) refreshPrices(ctx context.Context) {
	start := time.Now()

	symbols, err := s.symbols.ListActiveSymbols()
	if err != nil {
		s.logger.Warn().Err(err).Msg("price refresh: listing active symbols failed")
		return
	}
	if len(symbols) == 0 {
		return
	}

	published := 0
	for _, batch := range chunkSymbols(symbols, s.batchSize) {
		quotes, err := s.prices.GetPrices(ctx, batch)
		if err != nil {
			s.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("price refresh: batch failed, abandoning sweep")
			return
		}
		for _, quote := range quotes {
			if err := s.alerter.Publish(ctx, quote); err != nil {
				s.logger.Warn().Err(err).Str("symbol", quote.Symbol).Msg("price refresh: publish failed")
				continue
			}
			published++
		}
	}

	s.logger.Info().
		Int("symbols", len(symbols)).
		Int("published", published).
		Dur("elapsed", time.Since(start)).
		Msg("price refresh: complete")
}

func (s *Scheduler) runCleanup() {
	if err := s.janitor.CleanupOldData(); err != nil {
		s.logger.Warn().Err(err).Msg("retention sweep failed")
	}
}

func chunkSymbols(symbols []string, size int) [][]string {
	var chunks [][]string
	for len(symbols) > size {
		chunks = append(chunks, symbols[:size])
		symbols = symbols[size:]
	}
	if len(symbols) > 0 {
		chunks = append(chunks, symbols)
	}
	return chunks
}
