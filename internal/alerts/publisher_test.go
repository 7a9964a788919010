package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbot/market-data-service/internal/logging"
	"github.com/stockbot/market-data-service/internal/models"
)

// mockSink records published events for assertions.
type mockSink struct {
	Updates []*models.PriceQuote
	Moves   []*models.PriceQuote

	UpdateErr error
	MoveErr   error
}

func (m *mockSink) PublishPriceUpdate(_ context.Context, quote *models.PriceQuote) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.Updates = append(m.Updates, quote)
	return nil
}

func (m *mockSink) PublishSignificantMove(_ context.Context, quote *models.PriceQuote) error {
	if m.MoveErr != nil {
		return m.MoveErr
	}
	m.Moves = append(m.Moves, quote)
	return nil
}

// mockCooldown returns a canned Acquire outcome.
type mockCooldown struct {
	Allow bool
	Err   error

	AcquireCalls int
	LastSymbol   string
}

func (m *mockCooldown) Acquire(_ context.Context, symbol string) (bool, error) {
	m.AcquireCalls++
	m.LastSymbol = symbol
	if m.Err != nil {
		return false, m.Err
	}
	return m.Allow, nil
}

func quoteWithChange(symbol string, changePercent float64) *models.PriceQuote {
	change := decimal.NewFromFloat(changePercent)
	return &models.PriceQuote{
		Symbol:        symbol,
		Price:         decimal.NewFromFloat(150.00),
		ChangePercent: &change,
		FetchedAt:     time.Now().UTC(),
	}
}

func newTestPublisher(sink EventSink, cooldown Cooldown, threshold float64) *Publisher {
	return NewPublisher(sink, cooldown, threshold, logging.NewSilent())
}

// TestPublish_AlwaysEmitsPriceUpdate verifies every quote produces a price
// update even when the move is unremarkable.
func TestPublish_AlwaysEmitsPriceUpdate(t *testing.T) {
	sink := &mockSink{}
	cooldown := &mockCooldown{Allow: true}
	pub := newTestPublisher(sink, cooldown, 5.0)

	err := pub.Publish(context.Background(), quoteWithChange("AAPL", 0.42))

	require.NoError(t, err)
	assert.Len(t, sink.Updates, 1)
	assert.Empty(t, sink.Moves)
	assert.Equal(t, 0, cooldown.AcquireCalls)
}

// TestPublish_SignificantMove verifies a move at or past the threshold also
// produces a significant-move event.
func TestPublish_SignificantMove(t *testing.T) {
	sink := &mockSink{}
	cooldown := &mockCooldown{Allow: true}
	pub := newTestPublisher(sink, cooldown, 5.0)

	err := pub.Publish(context.Background(), quoteWithChange("TSLA", 7.3))

	require.NoError(t, err)
	assert.Len(t, sink.Updates, 1)
	require.Len(t, sink.Moves, 1)
	assert.Equal(t, "TSLA", sink.Moves[0].Symbol)
	assert.Equal(t, "TSLA", cooldown.LastSymbol)
}

// TestPublish_ThresholdIsInclusive verifies a change exactly at the
// threshold counts as significant.
func TestPublish_ThresholdIsInclusive(t *testing.T) {
	sink := &mockSink{}
	cooldown := &mockCooldown{Allow: true}
	pub := newTestPublisher(sink, cooldown, 5.0)

	err := pub.Publish(context.Background(), quoteWithChange("MSFT", 5.0))

	require.NoError(t, err)
	assert.Len(t, sink.Moves, 1)
}

// TestPublish_NegativeMoveCompared verifies drops are measured by absolute
// value, so a -7% day alerts just like a +7% day.
func TestPublish_NegativeMoveCompared(t *testing.T) {
	sink := &mockSink{}
	cooldown := &mockCooldown{Allow: true}
	pub := newTestPublisher(sink, cooldown, 5.0)

	err := pub.Publish(context.Background(), quoteWithChange("GOOG", -7.1))

	require.NoError(t, err)
	assert.Len(t, sink.Moves, 1)
}

// TestPublish_NegativeThresholdNormalized verifies a misconfigured negative
// threshold behaves like its absolute value instead of alerting on
// everything.
func TestPublish_NegativeThresholdNormalized(t *testing.T) {
	sink := &mockSink{}
	cooldown := &mockCooldown{Allow: true}
	pub := newTestPublisher(sink, cooldown, -5.0)

	err := pub.Publish(context.Background(), quoteWithChange("AAPL", 1.2))

	require.NoError(t, err)
	assert.Empty(t, sink.Moves)
}

// TestPublish_NoChangePercent verifies quotes without a previous close
// never count as significant.
func TestPublish_NoChangePercent(t *testing.T) {
	sink := &mockSink{}
	cooldown := &mockCooldown{Allow: true}
	pub := newTestPublisher(sink, cooldown, 5.0)

	quote := &models.PriceQuote{
		Symbol: "IPOX",
		Price:  decimal.NewFromFloat(42.00),
	}
	err := pub.Publish(context.Background(), quote)

	require.NoError(t, err)
	assert.Len(t, sink.Updates, 1)
	assert.Empty(t, sink.Moves)
	assert.Equal(t, 0, cooldown.AcquireCalls)
}

// TestPublish_CooldownSuppressesMove verifies a symbol inside its cooldown
// window still gets the price update but no second alert.
func TestPublish_CooldownSuppressesMove(t *testing.T) {
	sink := &mockSink{}
	cooldown := &mockCooldown{Allow: false}
	pub := newTestPublisher(sink, cooldown, 5.0)

	err := pub.Publish(context.Background(), quoteWithChange("TSLA", 9.9))

	require.NoError(t, err)
	assert.Len(t, sink.Updates, 1)
	assert.Empty(t, sink.Moves)
	assert.Equal(t, 1, cooldown.AcquireCalls)
}

// TestPublish_CooldownErrorFailsOpen verifies a broken cooldown store does
// not swallow alerts: the move is published anyway.
func TestPublish_CooldownErrorFailsOpen(t *testing.T) {
	sink := &mockSink{}
	cooldown := &mockCooldown{Err: errors.New("redis: connection refused")}
	pub := newTestPublisher(sink, cooldown, 5.0)

	err := pub.Publish(context.Background(), quoteWithChange("TSLA", 9.9))

	require.NoError(t, err)
	assert.Len(t, sink.Moves, 1)
}

// TestPublish_UpdateErrorPropagates verifies a failed price update aborts
// before any significance check.
func TestPublish_UpdateErrorPropagates(t *testing.T) {
	sink := &mockSink{UpdateErr: errors.New("kafka: broker down")}
	cooldown := &mockCooldown{Allow: true}
	pub := newTestPublisher(sink, cooldown, 5.0)

	err := pub.Publish(context.Background(), quoteWithChange("AAPL", 8.0))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish price update")
	assert.Equal(t, 0, cooldown.AcquireCalls)
}

// TestPublish_MoveErrorPropagates verifies a failed significant-move
// publish surfaces to the caller.
func TestPublish_MoveErrorPropagates(t *testing.T) {
	sink := &mockSink{MoveErr: errors.New("kafka: broker down")}
	cooldown := &mockCooldown{Allow: true}
	pub := newTestPublisher(sink, cooldown, 5.0)

	err := pub.Publish(context.Background(), quoteWithChange("AAPL", 8.0))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish significant move")
	assert.Len(t, sink.Updates, 1)
}
