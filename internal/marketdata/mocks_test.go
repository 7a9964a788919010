package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockbot/market-data-service/internal/alpaca"
	"github.com/stockbot/market-data-service/internal/logging"
	"github.com/stockbot/market-data-service/internal/models"
)

// mockStore implements the Store interface in memory, mirroring the
// conflict rules of the real schema: one latest price per stock,
// append-only price bars, news deduplicated by external ID.
type mockStore struct {
	stocks   map[string]*models.Stock       // key: symbol
	prices   map[string]*models.LatestPrice // key: stock ID
	bars     map[string][]*models.PriceBar  // key: stock ID
	articles map[string]*models.NewsArticle // key: external ID
	links    map[string]map[string]bool     // stock ID -> external IDs
	nextID   int

	// Track method calls for verification
	GetOrCreateStockCalls  int
	UpsertLatestPriceCalls int
	InsertPriceBarsCalls   int
	UpsertNewsArticleCalls int

	// Cutoffs passed to the retention deletes
	NewsCutoff time.Time
	BarsCutoff time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		stocks:   make(map[string]*models.Stock),
		prices:   make(map[string]*models.LatestPrice),
		bars:     make(map[string][]*models.PriceBar),
		articles: make(map[string]*models.NewsArticle),
		links:    make(map[string]map[string]bool),
		nextID:   1,
	}
}

func (m *mockStore) GetOrCreateStock(symbol, name string) (*models.Stock, error) {
	m.GetOrCreateStockCalls++
	if s, ok := m.stocks[symbol]; ok {
		return s, nil
	}
	s := &models.Stock{
		ID:        fmt.Sprintf("stock-%d", m.nextID),
		Symbol:    symbol,
		Name:      name,
		AssetType: "stock",
		IsActive:  true,
	}
	m.nextID++
	m.stocks[symbol] = s
	return s, nil
}

func (m *mockStore) GetLatestPriceByStockID(stockID string) (*models.LatestPrice, error) {
	return m.prices[stockID], nil
}

func (m *mockStore) UpsertLatestPrice(lp *models.LatestPrice) error {
	m.UpsertLatestPriceCalls++
	if existing, ok := m.prices[lp.StockID]; ok {
		lp.ID = existing.ID
	} else {
		lp.ID = fmt.Sprintf("price-%d", m.nextID)
		m.nextID++
	}
	m.prices[lp.StockID] = lp
	return nil
}

func (m *mockStore) InsertPriceBars(bars []*models.PriceBar) error {
	m.InsertPriceBarsCalls++
	for _, b := range bars {
		if m.hasBar(b.StockID, b.Date) {
			continue
		}
		b.ID = fmt.Sprintf("bar-%d", m.nextID)
		m.nextID++
		m.bars[b.StockID] = append(m.bars[b.StockID], b)
	}
	return nil
}

func (m *mockStore) hasBar(stockID string, date time.Time) bool {
	for _, b := range m.bars[stockID] {
		if b.Date.Equal(date) {
			return true
		}
	}
	return false
}

func (m *mockStore) GetPriceBarsInRange(stockID string, startDate, endDate time.Time) ([]*models.PriceBar, error) {
	var out []*models.PriceBar
	for _, b := range m.bars[stockID] {
		if b.Date.Before(startDate) || b.Date.After(endDate) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *mockStore) CountPriceBars(stockID string, startDate, endDate time.Time) (int, error) {
	bars, err := m.GetPriceBarsInRange(stockID, startDate, endDate)
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}

func (m *mockStore) GetNewestBarDate(stockID string) (time.Time, error) {
	var newest time.Time
	for _, b := range m.bars[stockID] {
		if b.Date.After(newest) {
			newest = b.Date
		}
	}
	return newest, nil
}

func (m *mockStore) UpsertNewsArticle(stockID string, a *models.NewsArticle) error {
	m.UpsertNewsArticleCalls++
	if existing, ok := m.articles[a.ExternalID]; ok {
		// Conflict only refreshes the fetch timestamp, never the content
		existing.FetchedAt = a.FetchedAt
	} else {
		a.ID = fmt.Sprintf("news-%d", m.nextID)
		m.nextID++
		m.articles[a.ExternalID] = a
	}
	if m.links[stockID] == nil {
		m.links[stockID] = make(map[string]bool)
	}
	m.links[stockID][a.ExternalID] = true
	return nil
}

func (m *mockStore) GetFreshNewsByStockID(stockID string, cutoff time.Time, limit int) ([]*models.NewsArticle, error) {
	var out []*models.NewsArticle
	for externalID := range m.links[stockID] {
		a := m.articles[externalID]
		if a == nil || a.FetchedAt.Before(cutoff) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) DeleteNewsOlderThan(cutoff time.Time) (int64, error) {
	m.NewsCutoff = cutoff
	var deleted int64
	for externalID, a := range m.articles {
		if a.PublishedAt.Before(cutoff) {
			delete(m.articles, externalID)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockStore) DeletePriceBarsOlderThan(cutoff time.Time) (int64, error) {
	m.BarsCutoff = cutoff
	var deleted int64
	for stockID, bars := range m.bars {
		var kept []*models.PriceBar
		for _, b := range bars {
			if b.Date.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, b)
		}
		m.bars[stockID] = kept
	}
	return deleted, nil
}

// mockProvider implements the Provider interface from canned responses.
// The mutex keeps the call counters safe under the concurrent cache
// tests.
type mockProvider struct {
	mu sync.Mutex

	assets    []models.Asset
	assetsErr error
	listDelay time.Duration

	snapshots map[string]*alpaca.Snapshot
	bars      []alpaca.Bar
	barsErr   error
	news      map[string][]alpaca.NewsItem // key: symbol
	newsErr   error

	// Track method calls for verification
	ListAssetsCalls   int
	GetSnapshotCalls  int
	GetSnapshotsCalls int
	GetBarsCalls      int
	GetNewsCalls      int

	LastBatch     []string
	LastBarsStart time.Time
	LastBarsEnd   time.Time
	LastBarsLimit int
	LastNewsLimit int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		snapshots: make(map[string]*alpaca.Snapshot),
		news:      make(map[string][]alpaca.NewsItem),
	}
}

func (m *mockProvider) ListAssets(ctx context.Context) ([]models.Asset, error) {
	m.mu.Lock()
	m.ListAssetsCalls++
	delay, assets, err := m.listDelay, m.assets, m.assetsErr
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func (m *mockProvider) GetSnapshot(ctx context.Context, symbol string) (*alpaca.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetSnapshotCalls++
	snap, ok := m.snapshots[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: /v2/stocks/%s/snapshot", alpaca.ErrNotFound, symbol)
	}
	return snap, nil
}

func (m *mockProvider) GetSnapshots(ctx context.Context, symbols []string) (map[string]*alpaca.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetSnapshotsCalls++
	m.LastBatch = append([]string(nil), symbols...)

	out := make(map[string]*alpaca.Snapshot)
	for _, symbol := range symbols {
		if snap, ok := m.snapshots[symbol]; ok {
			out[symbol] = snap
		}
	}
	return out, nil
}

func (m *mockProvider) GetBars(ctx context.Context, symbol string, start, end time.Time, limit int) ([]alpaca.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetBarsCalls++
	m.LastBarsStart = start
	m.LastBarsEnd = end
	m.LastBarsLimit = limit
	if m.barsErr != nil {
		return nil, m.barsErr
	}
	return m.bars, nil
}

func (m *mockProvider) GetNews(ctx context.Context, symbol string, limit int) ([]alpaca.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetNewsCalls++
	m.LastNewsLimit = limit
	if m.newsErr != nil {
		return nil, m.newsErr
	}
	return m.news[symbol], nil
}

func newTestService(store *mockStore, provider *mockProvider) *Service {
	return NewService(store, provider, logging.NewSilent())
}

// Helper to build a provider snapshot; prevClose <= 0 means absent
func testSnapshot(price, prevClose float64) *alpaca.Snapshot {
	snap := &alpaca.Snapshot{Price: decimal.NewFromFloat(price)}
	if prevClose > 0 {
		pc := decimal.NewFromFloat(prevClose)
		snap.PrevClose = &pc
	}
	return snap
}

func storedBar(stockID string, date time.Time, close float64) *models.PriceBar {
	return &models.PriceBar{
		StockID: stockID,
		Date:    date,
		Open:    decimal.NewFromFloat(close),
		High:    decimal.NewFromFloat(close),
		Low:     decimal.NewFromFloat(close),
		Close:   decimal.NewFromFloat(close),
		Volume:  1000,
	}
}

func providerBar(date time.Time, close float64) alpaca.Bar {
	return alpaca.Bar{
		Date:   date,
		Open:   decimal.NewFromFloat(close),
		High:   decimal.NewFromFloat(close),
		Low:    decimal.NewFromFloat(close),
		Close:  decimal.NewFromFloat(close),
		Volume: 1000,
	}
}

func testNewsItem(externalID, headline string, published time.Time) alpaca.NewsItem {
	return alpaca.NewsItem{
		ExternalID:  externalID,
		Headline:    headline,
		Summary:     "summary",
		URL:         "https://example.com/news/" + externalID,
		Source:      "benzinga",
		PublishedAt: published,
	}
}
