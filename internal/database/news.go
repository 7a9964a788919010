package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stockbot/market-data-service/internal/models"
)

// UpsertNewsArticle stores an article and links it to a stock in one
// transaction. An article already known by external_id keeps its
// content; only its fetch timestamp is refreshed. The link insert is a
// no-op when the association already exists.
func (db *DB) UpsertNewsArticle(stockID string, a *models.NewsArticle) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO news_articles (external_id, headline, summary, url, source, published_at, fetched_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_id) DO UPDATE SET
			fetched_at = EXCLUDED.fetched_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	now := time.Now()
	summary := sql.NullString{String: a.Summary, Valid: a.Summary != ""}
	url := sql.NullString{String: a.URL, Valid: a.URL != ""}
	source := sql.NullString{String: a.Source, Valid: a.Source != ""}

	err = tx.QueryRow(query,
		a.ExternalID, a.Headline, summary, url, source, a.PublishedAt, a.FetchedAt, now, now,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert news article %s: %w", a.ExternalID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO news_article_stocks (news_article_id, stock_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, a.ID, stockID)
	if err != nil {
		return fmt.Errorf("failed to link news article to stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetFreshNewsByStockID retrieves articles linked to a stock that were
// fetched at or after the cutoff, newest published first
func (db *DB) GetFreshNewsByStockID(stockID string, cutoff time.Time, limit int) ([]*models.NewsArticle, error) {
	query := `
		SELECT n.id, n.external_id, n.headline, n.summary, n.url, n.source, n.published_at, n.fetched_at, n.created_at
		FROM news_articles n
		JOIN news_article_stocks ns ON ns.news_article_id = n.id
		WHERE ns.stock_id = $1 AND n.fetched_at >= $2
		ORDER BY n.published_at DESC
		LIMIT $3
	`
	rows, err := db.conn.Query(query, stockID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get news articles: %w", err)
	}
	defer rows.Close()

	var articles []*models.NewsArticle
	for rows.Next() {
		var a models.NewsArticle
		var summary, url, source sql.NullString
		var fetchedAt sql.NullTime

		err := rows.Scan(
			&a.ID, &a.ExternalID, &a.Headline, &summary, &url, &source, &a.PublishedAt, &fetchedAt, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news article: %w", err)
		}

		if summary.Valid {
			a.Summary = summary.String
		}
		if url.Valid {
			a.URL = url.String
		}
		if source.Valid {
			a.Source = source.String
		}
		if fetchedAt.Valid {
			a.FetchedAt = fetchedAt.Time
		}
		articles = append(articles, &a)
	}

	return articles, nil
}

// DeleteNewsOlderThan removes articles published before the cutoff and
// returns how many were deleted. Stock associations go with them via
// the cascade.
func (db *DB) DeleteNewsOlderThan(cutoff time.Time) (int64, error) {
	query := `DELETE FROM news_articles WHERE published_at < $1`
	result, err := db.conn.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old news articles: %w", err)
	}
	return result.RowsAffected()
}
