package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stockbot/market-data-service/internal/models"
)

// assetCache is the in-memory snapshot of the provider's asset
// directory. The whole listing is swapped at once under the write lock;
// readers only ever see a complete snapshot.
type assetCache struct {
	mu        sync.RWMutex
	assets    []models.Asset
	fetchedAt time.Time
}

// SearchAssets matches the query against the cached asset directory,
// refreshing the directory from the provider when it is older than a
// day. Symbols match on the upper-cased query, names case-insensitively.
func (s *Service) SearchAssets(ctx context.Context, query string) ([]models.Asset, error) {
	assets, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}
	return filterAssets(assets, query), nil
}

// directory returns a fresh directory snapshot, fetching at most once
// per expiry no matter how many callers arrive at the same time.
func (s *Service) directory(ctx context.Context) ([]models.Asset, error) {
	s.assets.mu.RLock()
	if isFresh(s.assets.fetchedAt, assetCacheTTL) {
		cached := s.assets.assets
		s.assets.mu.RUnlock()
		return cached, nil
	}
	s.assets.mu.RUnlock()

	s.assets.mu.Lock()
	defer s.assets.mu.Unlock()

	// Someone else may have refreshed while we waited for the lock
	if isFresh(s.assets.fetchedAt, assetCacheTTL) {
		return s.assets.assets, nil
	}

	assets, err := s.provider.ListAssets(ctx)
	if err != nil {
		// The previous snapshot stays in place, just stale
		return nil, fmt.Errorf("failed to refresh asset directory: %w", err)
	}

	s.assets.assets = assets
	s.assets.fetchedAt = time.Now()

	s.logger.Info().Int("assets", len(assets)).Msg("asset directory refreshed")
	return assets, nil
}

func filterAssets(assets []models.Asset, query string) []models.Asset {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Asset{}
	}

	symbolQuery := strings.ToUpper(query)
	nameQuery := strings.ToLower(query)

	matches := make([]models.Asset, 0, maxSearchResults)
	for _, a := range assets {
		if strings.Contains(a.Symbol, symbolQuery) || strings.Contains(strings.ToLower(a.Name), nameQuery) {
			matches = append(matches, a)
			if len(matches) == maxSearchResults {
				break
			}
		}
	}
	return matches
}
