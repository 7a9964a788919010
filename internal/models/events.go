package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price event type constants
const (
	EventTypePriceUpdate     = "PRICE_UPDATE"
	EventTypeSignificantMove = "SIGNIFICANT_MOVE"
)

// PriceEvent represents a Kafka event emitted when a stored quote
// changes or crosses the movement threshold.
type PriceEvent struct {
	EventType     string           `json:"event_type"`
	Symbol        string           `json:"symbol"`
	Price         decimal.Decimal  `json:"price"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}
