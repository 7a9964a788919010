package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockbot/market-data-service/internal/alpaca"
	"github.com/stockbot/market-data-service/internal/models"
)

// GetNews returns recent articles for a symbol, newest first. Articles
// fetched within the last two hours are served from storage; otherwise
// the provider is asked again and every returned article upserted, so
// an article shared across symbols keeps a single row.
func (s *Service) GetNews(ctx context.Context, symbol string, limit int) ([]*models.NewsArticle, error) {
	if limit <= 0 {
		limit = defaultNewsLimit
	}
	symbol = normalizeSymbol(symbol)

	stock, err := s.store.GetOrCreateStock(symbol, symbol)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-newsTTL)
	fresh, err := s.store.GetFreshNewsByStockID(stock.ID, cutoff, limit)
	if err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		return fresh, nil
	}

	items, err := s.provider.GetNews(ctx, symbol, limit)
	if err != nil {
		if errors.Is(err, alpaca.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, err
	}

	now := time.Now().UTC()
	for _, item := range items {
		article := &models.NewsArticle{
			ExternalID:  item.ExternalID,
			Headline:    item.Headline,
			Summary:     item.Summary,
			URL:         item.URL,
			Source:      item.Source,
			PublishedAt: item.PublishedAt,
			FetchedAt:   now,
		}
		if err := s.store.UpsertNewsArticle(stock.ID, article); err != nil {
			return nil, err
		}
	}
	s.logger.Debug().Str("symbol", symbol).Int("articles", len(items)).Msg("news refreshed from provider")

	// Read back through the store so ordering and content are canonical,
	// including articles first stored for another symbol.
	return s.store.GetFreshNewsByStockID(stock.ID, cutoff, limit)
}
