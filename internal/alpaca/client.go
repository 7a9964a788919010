// Package alpaca provides a client for the Alpaca market data API.
package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/stockbot/market-data-service/internal/logging"
	"github.com/stockbot/market-data-service/internal/models"
)

const (
	DefaultBaseURL   = "https://data.alpaca.markets"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 200 // requests per minute
)

// Sentinel errors callers can test with errors.Is. Access denied means
// the credentials lack permission for the endpoint; not found means the
// provider does not know the symbol.
var (
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("not found")
)

// Snapshot is the provider's current view of a symbol
type Snapshot struct {
	Price     decimal.Decimal
	PrevClose *decimal.Decimal
}

// Bar is one daily OHLCV bar from the provider, keyed by trading date
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
	VWAP   *decimal.Decimal
}

// NewsItem is one provider news article
type NewsItem struct {
	ExternalID  string
	Headline    string
	Summary     string
	URL         string
	Source      string
	PublishedAt time.Time
}

// Client calls the Alpaca data API over HTTP
type Client struct {
	baseURL    string
	keyID      string
	secretKey  string
	httpClient *http.Client
	logger     *logging.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit caps outbound requests per minute
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Alpaca client
func NewClient(keyID, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		keyID:     keyID,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultRateLimit), 1),
		logger:  logging.NewSilent(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-2xx provider response
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited authenticated GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)

	c.logger.Debug().Str("endpoint", path).Msg("alpaca request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", path, ErrAccessDenied)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

type assetPayload struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Class    string `json:"class"`
	Tradable bool   `json:"tradable"`
}

// ListAssets retrieves the directory of active, tradable assets.
// Non-tradable listings are dropped here so no consumer ever sees them.
func (c *Client) ListAssets(ctx context.Context) ([]models.Asset, error) {
	params := url.Values{}
	params.Set("status", "active")
	params.Set("asset_class", "us_equity")

	var payload []assetPayload
	if err := c.get(ctx, "/v2/assets", params, &payload); err != nil {
		return nil, err
	}

	assets := make([]models.Asset, 0, len(payload))
	for _, a := range payload {
		if !a.Tradable {
			continue
		}
		assets = append(assets, models.Asset{
			Symbol:   a.Symbol,
			Name:     a.Name,
			Exchange: a.Exchange,
			Class:    a.Class,
		})
	}
	return assets, nil
}

type snapshotPayload struct {
	LatestTrade *struct {
		Price float64 `json:"p"`
	} `json:"latestTrade"`
	PrevDailyBar *struct {
		Close float64 `json:"c"`
	} `json:"prevDailyBar"`
}

func (p *snapshotPayload) toSnapshot() (*Snapshot, error) {
	if p.LatestTrade == nil {
		return nil, fmt.Errorf("snapshot missing latest trade")
	}
	snap := &Snapshot{Price: decimal.NewFromFloat(p.LatestTrade.Price)}
	if p.PrevDailyBar != nil {
		prev := decimal.NewFromFloat(p.PrevDailyBar.Close)
		snap.PrevClose = &prev
	}
	return snap, nil
}

// GetSnapshot retrieves the current snapshot for one symbol
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	var payload snapshotPayload
	if err := c.get(ctx, "/v2/stocks/"+symbol+"/snapshot", nil, &payload); err != nil {
		return nil, err
	}

	snap, err := payload.toSnapshot()
	if err != nil {
		return nil, fmt.Errorf("malformed snapshot for %s: %w", symbol, err)
	}
	return snap, nil
}

// GetSnapshots retrieves snapshots for several symbols in one call.
// Symbols the provider does not recognize are simply absent from the
// result, as are entries without a usable latest trade.
func (c *Client) GetSnapshots(ctx context.Context, symbols []string) (map[string]*Snapshot, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))

	payload := make(map[string]snapshotPayload)
	if err := c.get(ctx, "/v2/stocks/snapshots", params, &payload); err != nil {
		return nil, err
	}

	snapshots := make(map[string]*Snapshot, len(payload))
	for symbol, p := range payload {
		snap, err := p.toSnapshot()
		if err != nil {
			c.logger.Warn().Str("symbol", symbol).Msg("skipping unusable snapshot")
			continue
		}
		snapshots[symbol] = snap
	}
	return snapshots, nil
}

type barPayload struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    int64     `json:"v"`
	VWAP      *float64  `json:"vw"`
}

type barsResponse struct {
	Bars []barPayload `json:"bars"`
}

// GetBars retrieves up to limit daily bars for a symbol between start and
// end. Bar timestamps are normalized to their UTC trading date.
func (c *Client) GetBars(ctx context.Context, symbol string, start, end time.Time, limit int) ([]Bar, error) {
	params := url.Values{}
	params.Set("timeframe", "1Day")
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("adjustment", "raw")

	var payload barsResponse
	if err := c.get(ctx, "/v2/stocks/"+symbol+"/bars", params, &payload); err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(payload.Bars))
	for _, b := range payload.Bars {
		ts := b.Timestamp.UTC()
		bar := Bar{
			Date:   time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: b.Volume,
		}
		if b.VWAP != nil {
			vwap := decimal.NewFromFloat(*b.VWAP)
			bar.VWAP = &vwap
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

type newsPayload struct {
	ID        int64     `json:"id"`
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

type newsResponse struct {
	News []newsPayload `json:"news"`
}

// GetNews retrieves recent news articles mentioning a symbol, newest first
func (c *Client) GetNews(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "desc")

	var payload newsResponse
	if err := c.get(ctx, "/v1beta1/news", params, &payload); err != nil {
		return nil, err
	}

	items := make([]NewsItem, 0, len(payload.News))
	for _, n := range payload.News {
		items = append(items, NewsItem{
			ExternalID:  strconv.FormatInt(n.ID, 10),
			Headline:    n.Headline,
			Summary:     n.Summary,
			URL:         n.URL,
			Source:      n.Source,
			PublishedAt: n.CreatedAt,
		})
	}
	return items, nil
}
