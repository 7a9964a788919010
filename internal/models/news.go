package models

import "time"

// NewsArticle represents a provider news item. Articles are shared
// across symbols: one row per external_id, linked to each stock it
// mentions through news_article_stocks.
type NewsArticle struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	CreatedAt   time.Time `json:"created_at"`
}
