package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/stockbot/market-data-service/internal/models"
)

// GetStockBySymbol retrieves a stock by symbol. Returns nil without an
// error when the symbol is unknown.
func (db *DB) GetStockBySymbol(symbol string) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, exchange, asset_type, is_active, created_at, updated_at
		FROM stocks
		WHERE symbol = $1
	`
	var s models.Stock
	var exchange sql.NullString

	err := db.conn.QueryRow(query, symbol).Scan(
		&s.ID, &s.Symbol, &s.Name, &exchange, &s.AssetType, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	if exchange.Valid {
		s.Exchange = exchange.String
	}
	return &s, nil
}

// CreateStock inserts a new stock row, letting Postgres assign the ID
func (db *DB) CreateStock(s *models.Stock) error {
	query := `
		INSERT INTO stocks (symbol, name, exchange, asset_type, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	if s.AssetType == "" {
		s.AssetType = "stock"
	}
	exchange := sql.NullString{String: s.Exchange, Valid: s.Exchange != ""}

	err := db.conn.QueryRow(query,
		s.Symbol, s.Name, exchange, s.AssetType, s.IsActive, now, now,
	).Scan(&s.ID)

	if err != nil {
		return fmt.Errorf("failed to create stock: %w", err)
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// GetOrCreateStock returns the stock row for a symbol, creating it on
// first use. A concurrent insert of the same symbol loses the race on
// the unique constraint and re-reads the winner's row.
func (db *DB) GetOrCreateStock(symbol, name string) (*models.Stock, error) {
	stock, err := db.GetStockBySymbol(symbol)
	if err != nil {
		return nil, err
	}
	if stock != nil {
		return stock, nil
	}

	stock = &models.Stock{
		Symbol:    symbol,
		Name:      name,
		AssetType: "stock",
		IsActive:  true,
	}
	err = db.CreateStock(stock)
	if isUniqueViolation(err) {
		return db.GetStockBySymbol(symbol)
	}
	if err != nil {
		return nil, err
	}
	return stock, nil
}

// ListActiveSymbols returns the symbols of all active stocks
func (db *DB) ListActiveSymbols() ([]string, error) {
	query := `
		SELECT symbol
		FROM stocks
		WHERE is_active = true
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, nil
}

// SetStockActive flips the active flag for a symbol
func (db *DB) SetStockActive(symbol string, active bool) error {
	query := `UPDATE stocks SET is_active = $2, updated_at = $3 WHERE symbol = $1`
	result, err := db.conn.Exec(query, symbol, active, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock not found: %s", symbol)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
