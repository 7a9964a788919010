package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockbot/market-data-service/internal/models"
)

// InsertPriceBars stores daily bars in one transaction. Bars already
// present for a (stock_id, date) are left untouched, so re-fetching an
// overlapping window never rewrites history.
func (db *DB) InsertPriceBars(bars []*models.PriceBar) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_history (stock_id, date, open, high, low, close, volume, vwap, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (stock_id, date) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, b := range bars {
		_, err := stmt.Exec(b.StockID, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.VWAP, now)
		if err != nil {
			return fmt.Errorf("failed to insert price bar for %s: %w", b.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPriceBarsInRange retrieves bars for a stock within a date range,
// ordered by date ascending
func (db *DB) GetPriceBarsInRange(stockID string, startDate, endDate time.Time) ([]*models.PriceBar, error) {
	query := `
		SELECT id, stock_id, date, open, high, low, close, volume, vwap, created_at
		FROM price_history
		WHERE stock_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.Query(query, stockID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get price bars: %w", err)
	}
	defer rows.Close()

	var bars []*models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		var vwap sql.NullString

		err := rows.Scan(
			&b.ID, &b.StockID, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &vwap, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}

		if vwap.Valid {
			d, _ := decimal.NewFromString(vwap.String)
			b.VWAP = &d
		}
		bars = append(bars, &b)
	}

	return bars, nil
}

// CountPriceBars returns the number of bars stored for a stock within
// a date range
func (db *DB) CountPriceBars(stockID string, startDate, endDate time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM price_history
		WHERE stock_id = $1 AND date >= $2 AND date <= $3
	`
	var count int
	err := db.conn.QueryRow(query, stockID, startDate, endDate).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count price bars: %w", err)
	}
	return count, nil
}

// GetNewestBarDate returns the date of the most recent bar stored for
// a stock. Returns the zero time when no bars exist.
func (db *DB) GetNewestBarDate(stockID string) (time.Time, error) {
	query := `SELECT MAX(date) FROM price_history WHERE stock_id = $1`
	var newest sql.NullTime
	err := db.conn.QueryRow(query, stockID).Scan(&newest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get newest bar date: %w", err)
	}
	if !newest.Valid {
		return time.Time{}, nil
	}
	return newest.Time, nil
}

// DeletePriceBarsOlderThan removes bars with dates before the cutoff
// and returns how many were deleted
func (db *DB) DeletePriceBarsOlderThan(cutoff time.Time) (int64, error) {
	query := `DELETE FROM price_history WHERE date < $1`
	result, err := db.conn.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price bars: %w", err)
	}
	return result.RowsAffected()
}
