// Package marketdata implements the cached read path for prices,
// history and news. Every lookup consults local state first and only
// falls through to the provider when that state is missing or stale.
package marketdata

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stockbot/market-data-service/internal/alpaca"
	"github.com/stockbot/market-data-service/internal/logging"
	"github.com/stockbot/market-data-service/internal/models"
)

// Freshness and retention policy. Callers cannot override these; the
// service owns how long each kind of data stays trustworthy.
const (
	assetCacheTTL = 24 * time.Hour
	priceTTL      = 30 * time.Minute
	newsTTL       = 2 * time.Hour

	historyRecencyDays   = 3
	historyRetentionDays = 365
	newsRetentionDays    = 7

	maxSearchResults = 20
	defaultNewsLimit = 20
)

// periodDays maps the supported history period labels to calendar days
var periodDays = map[string]int{
	"1W": 7,
	"1M": 30,
	"3M": 90,
	"6M": 180,
	"1Y": 365,
}

var (
	// ErrSymbolNotFound means the provider does not know the symbol
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrInvalidPeriod means the history period label is not supported
	ErrInvalidPeriod = errors.New("invalid period")
)

// Store is the durable state the service reads and writes. *database.DB
// satisfies it.
type Store interface {
	GetOrCreateStock(symbol, name string) (*models.Stock, error)
	GetLatestPriceByStockID(stockID string) (*models.LatestPrice, error)
	UpsertLatestPrice(lp *models.LatestPrice) error
	InsertPriceBars(bars []*models.PriceBar) error
	GetPriceBarsInRange(stockID string, startDate, endDate time.Time) ([]*models.PriceBar, error)
	CountPriceBars(stockID string, startDate, endDate time.Time) (int, error)
	GetNewestBarDate(stockID string) (time.Time, error)
	UpsertNewsArticle(stockID string, a *models.NewsArticle) error
	GetFreshNewsByStockID(stockID string, cutoff time.Time, limit int) ([]*models.NewsArticle, error)
	DeleteNewsOlderThan(cutoff time.Time) (int64, error)
	DeletePriceBarsOlderThan(cutoff time.Time) (int64, error)
}

// Provider is the upstream market data source. *alpaca.Client satisfies it.
type Provider interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)
	GetSnapshot(ctx context.Context, symbol string) (*alpaca.Snapshot, error)
	GetSnapshots(ctx context.Context, symbols []string) (map[string]*alpaca.Snapshot, error)
	GetBars(ctx context.Context, symbol string, start, end time.Time, limit int) ([]alpaca.Bar, error)
	GetNews(ctx context.Context, symbol string, limit int) ([]alpaca.NewsItem, error)
}

// Service serves market data through the tiered caches
type Service struct {
	store    Store
	provider Provider
	logger   *logging.Logger

	assets assetCache
}

// NewService creates the market data service
func NewService(store Store, provider Provider, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &Service{
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// CleanupOldData removes news and price history beyond the retention
// windows and reports what it deleted.
func (s *Service) CleanupOldData() error {
	now := time.Now().UTC()

	newsDeleted, err := s.store.DeleteNewsOlderThan(now.AddDate(0, 0, -newsRetentionDays))
	if err != nil {
		return err
	}

	barsDeleted, err := s.store.DeletePriceBarsOlderThan(dateOf(now.AddDate(0, 0, -historyRetentionDays)))
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("news_deleted", newsDeleted).
		Int64("bars_deleted", barsDeleted).
		Msg("retention sweep complete")
	return nil
}

func isFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// dateOf truncates a time to its UTC calendar date
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
