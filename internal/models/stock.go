package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock represents a tradable symbol known to the service. Rows are
// created lazily the first time a symbol is requested.
type Stock struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange,omitempty"`
	AssetType string    `json:"asset_type"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LatestPrice represents the most recent quote stored for a stock.
// There is at most one row per stock; refreshes overwrite in place.
type LatestPrice struct {
	ID            string           `json:"id"`
	StockID       string           `json:"stock_id"`
	Price         decimal.Decimal  `json:"price"`
	PreviousClose *decimal.Decimal `json:"previous_close,omitempty"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
	FetchedAt     time.Time        `json:"fetched_at"`
}

// PriceQuote is the assembled quote returned to callers: the stock's
// identity joined with its latest stored price.
type PriceQuote struct {
	Symbol        string           `json:"symbol"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	PreviousClose *decimal.Decimal `json:"previous_close"`
	ChangePercent *decimal.Decimal `json:"change_percent"`
	FetchedAt     time.Time        `json:"fetched_at"`
}

// Asset is a directory entry from the provider's asset listing. These
// live only in the in-memory directory snapshot, never in Postgres.
type Asset struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
	Class    string `json:"class,omitempty"`
}
