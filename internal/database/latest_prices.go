package database

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stockbot/market-data-service/internal/models"
)

// UpsertLatestPrice inserts or overwrites the single quote row for a
// stock. Concurrent refreshes of the same stock both land on the
// unique constraint, so last write wins and no duplicate row appears.
func (db *DB) UpsertLatestPrice(lp *models.LatestPrice) error {
	query := `
		INSERT INTO latest_prices (stock_id, price, previous_close, change_percent, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stock_id) DO UPDATE SET
			price = EXCLUDED.price,
			previous_close = EXCLUDED.previous_close,
			change_percent = EXCLUDED.change_percent,
			fetched_at = EXCLUDED.fetched_at
		RETURNING id
	`
	err := db.conn.QueryRow(query,
		lp.StockID, lp.Price, lp.PreviousClose, lp.ChangePercent, lp.FetchedAt,
	).Scan(&lp.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert latest price: %w", err)
	}
	return nil
}

// GetLatestPriceByStockID retrieves the stored quote for a stock.
// Returns nil without an error when no quote has been stored yet.
func (db *DB) GetLatestPriceByStockID(stockID string) (*models.LatestPrice, error) {
	query := `
		SELECT id, stock_id, price, previous_close, change_percent, fetched_at
		FROM latest_prices
		WHERE stock_id = $1
	`
	var lp models.LatestPrice
	var prevClose, changePct sql.NullString

	err := db.conn.QueryRow(query, stockID).Scan(
		&lp.ID, &lp.StockID, &lp.Price, &prevClose, &changePct, &lp.FetchedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}

	if prevClose.Valid {
		d, _ := decimal.NewFromString(prevClose.String)
		lp.PreviousClose = &d
	}
	if changePct.Valid {
		d, _ := decimal.NewFromString(changePct.String)
		lp.ChangePercent = &d
	}
	return &lp, nil
}
