package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockbot/market-data-service/internal/alpaca"
	"github.com/stockbot/market-data-service/internal/models"
)

var oneHundred = decimal.NewFromInt(100)

// GetPrice returns the current quote for a symbol. A stored quote
// younger than the price TTL is served as-is; otherwise the provider is
// consulted and the stored quote overwritten.
func (s *Service) GetPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	symbol = normalizeSymbol(symbol)

	stock, err := s.store.GetOrCreateStock(symbol, symbol)
	if err != nil {
		return nil, err
	}

	cached, err := s.store.GetLatestPriceByStockID(stock.ID)
	if err != nil {
		return nil, err
	}
	if cached != nil && isFresh(cached.FetchedAt, priceTTL) {
		return quoteFrom(stock, cached), nil
	}

	snap, err := s.provider.GetSnapshot(ctx, symbol)
	if err != nil {
		if errors.Is(err, alpaca.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, err
	}

	lp := buildLatestPrice(stock.ID, snap)
	if err := s.store.UpsertLatestPrice(lp); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("symbol", symbol).Msg("price refreshed from provider")
	return quoteFrom(stock, lp), nil
}

// GetPrices returns quotes for several symbols, keyed by symbol. Fresh
// symbols are served from storage; all stale or unknown ones share a
// single batched provider call. Symbols the provider does not recognize
// are omitted from the map. Duplicates collapse to one lookup.
func (s *Service) GetPrices(ctx context.Context, symbols []string) (map[string]*models.PriceQuote, error) {
	ordered := normalizeSymbols(symbols)

	quotes := make(map[string]*models.PriceQuote, len(ordered))
	stocks := make(map[string]*models.Stock, len(ordered))
	var stale []string

	for _, symbol := range ordered {
		stock, err := s.store.GetOrCreateStock(symbol, symbol)
		if err != nil {
			return nil, err
		}
		stocks[symbol] = stock

		cached, err := s.store.GetLatestPriceByStockID(stock.ID)
		if err != nil {
			return nil, err
		}
		if cached != nil && isFresh(cached.FetchedAt, priceTTL) {
			quotes[symbol] = quoteFrom(stock, cached)
			continue
		}
		stale = append(stale, symbol)
	}

	if len(stale) > 0 {
		snaps, err := s.provider.GetSnapshots(ctx, stale)
		if err != nil {
			return nil, err
		}

		for _, symbol := range stale {
			snap, ok := snaps[symbol]
			if !ok {
				continue
			}
			lp := buildLatestPrice(stocks[symbol].ID, snap)
			if err := s.store.UpsertLatestPrice(lp); err != nil {
				return nil, err
			}
			quotes[symbol] = quoteFrom(stocks[symbol], lp)
		}
	}

	return quotes, nil
}

// buildLatestPrice derives the stored quote from a provider snapshot.
// The change percent only exists when a non-zero previous close does.
func buildLatestPrice(stockID string, snap *alpaca.Snapshot) *models.LatestPrice {
	lp := &models.LatestPrice{
		StockID:   stockID,
		Price:     snap.Price,
		FetchedAt: time.Now().UTC(),
	}

	if snap.PrevClose != nil && !snap.PrevClose.IsZero() {
		change := snap.Price.Sub(*snap.PrevClose).Div(*snap.PrevClose).Mul(oneHundred).Round(4)
		lp.PreviousClose = snap.PrevClose
		lp.ChangePercent = &change
	}
	return lp
}

func quoteFrom(stock *models.Stock, lp *models.LatestPrice) *models.PriceQuote {
	return &models.PriceQuote{
		Symbol:        stock.Symbol,
		Name:          stock.Name,
		Price:         lp.Price,
		PreviousClose: lp.PreviousClose,
		ChangePercent: lp.ChangePercent,
		FetchedAt:     lp.FetchedAt,
	}
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	ordered := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		symbol := normalizeSymbol(raw)
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		ordered = append(ordered, symbol)
	}
	return ordered
}
