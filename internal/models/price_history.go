package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar represents one daily OHLCV bar. Bars are append-only and
// keyed by (stock_id, date); a bar is never rewritten once stored.
type PriceBar struct {
	ID        string           `json:"id"`
	StockID   string           `json:"stock_id"`
	Date      time.Time        `json:"date"`
	Open      decimal.Decimal  `json:"open"`
	High      decimal.Decimal  `json:"high"`
	Low       decimal.Decimal  `json:"low"`
	Close     decimal.Decimal  `json:"close"`
	Volume    int64            `json:"volume"`
	VWAP      *decimal.Decimal `json:"vwap,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
