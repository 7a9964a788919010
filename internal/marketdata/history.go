package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockbot/market-data-service/internal/alpaca"
	"github.com/stockbot/market-data-service/internal/models"
)

// GetHistory returns daily bars for the period ending now, in ascending
// date order. Storage serves the request outright when it plausibly
// covers the window; otherwise the whole window is refetched and the
// missing dates merged in.
func (s *Service) GetHistory(ctx context.Context, symbol, period string) ([]*models.PriceBar, error) {
	days, ok := periodDays[period]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: 1W, 1M, 3M, 6M, 1Y)", ErrInvalidPeriod, period)
	}
	symbol = normalizeSymbol(symbol)

	stock, err := s.store.GetOrCreateStock(symbol, symbol)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	startDate := dateOf(start)
	endDate := dateOf(end)

	covered, err := s.windowCovered(stock.ID, startDate, endDate, days)
	if err != nil {
		return nil, err
	}
	if covered {
		return s.store.GetPriceBarsInRange(stock.ID, startDate, endDate)
	}

	fetched, err := s.provider.GetBars(ctx, symbol, start, end, days)
	if err != nil {
		if errors.Is(err, alpaca.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, err
	}

	if len(fetched) > 0 {
		bars := make([]*models.PriceBar, 0, len(fetched))
		for _, b := range fetched {
			bars = append(bars, &models.PriceBar{
				StockID: stock.ID,
				Date:    b.Date,
				Open:    b.Open,
				High:    b.High,
				Low:     b.Low,
				Close:   b.Close,
				Volume:  b.Volume,
				VWAP:    b.VWAP,
			})
		}
		if err := s.store.InsertPriceBars(bars); err != nil {
			return nil, err
		}
		s.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("history window refetched")
	}

	return s.store.GetPriceBarsInRange(stock.ID, startDate, endDate)
}

// windowCovered decides whether stored bars plausibly cover the window:
// enough bars for the expected number of trading days, and a newest bar
// within three calendar days of the window's end (so a weekend gap does
// not force a refetch).
func (s *Service) windowCovered(stockID string, startDate, endDate time.Time, days int) (bool, error) {
	count, err := s.store.CountPriceBars(stockID, startDate, endDate)
	if err != nil {
		return false, err
	}
	if count < expectedTradingDays(days) {
		return false, nil
	}

	newest, err := s.store.GetNewestBarDate(stockID)
	if err != nil {
		return false, err
	}
	if newest.IsZero() {
		return false, nil
	}
	return !newest.Before(endDate.AddDate(0, 0, -historyRecencyDays)), nil
}

// expectedTradingDays estimates how many trading days a calendar window
// holds: five sevenths of it, minus slack for holidays, never below one.
func expectedTradingDays(windowDays int) int {
	expected := windowDays*5/7 - 2
	if expected < 1 {
		return 1
	}
	return expected
}
