// Package alerts publishes price events and flags significant moves.
//
// Every refreshed quote goes out as a plain price update. Quotes whose
// change percent crosses the configured threshold additionally produce a
// significant-move event, rate-limited per symbol by a cooldown guard so
// a volatile ticker does not flood downstream consumers.
package alerts

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stockbot/market-data-service/internal/logging"
	"github.com/stockbot/market-data-service/internal/models"
)

// EventSink receives the events the publisher emits. *kafka.Producer
// satisfies it.
type EventSink interface {
	PublishPriceUpdate(ctx context.Context, quote *models.PriceQuote) error
	PublishSignificantMove(ctx context.Context, quote *models.PriceQuote) error
}

// Cooldown gates significant-move events per symbol. Acquire reports
// whether the caller won the window; false means another alert for the
// symbol fired recently.
type Cooldown interface {
	Acquire(ctx context.Context, symbol string) (bool, error)
}

// Publisher fans refreshed quotes out to the event sink.
type Publisher struct {
	sink      EventSink
	cooldown  Cooldown
	threshold decimal.Decimal
	logger    *logging.Logger
}

// NewPublisher creates a Publisher. thresholdPercent is the absolute
// change percent at which a move counts as significant.
func NewPublisher(sink EventSink, cooldown Cooldown, thresholdPercent float64, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &Publisher{
		sink:      sink,
		cooldown:  cooldown,
		threshold: decimal.NewFromFloat(thresholdPercent).Abs(),
		logger:    logger,
	}
}

// Publish emits a price update for the quote and, when the move is
// significant and the symbol's cooldown window is free, a significant-move
// event as well.
func (p *Publisher) Publish(ctx context.Context, quote *models.PriceQuote) error {
	if err := p.sink.PublishPriceUpdate(ctx, quote); err != nil {
		return fmt.Errorf("failed to publish price update: %w", err)
	}

	if !p.isSignificant(quote) {
		return nil
	}

	ok, err := p.cooldown.Acquire(ctx, quote.Symbol)
	if err != nil {
		// Fail open: a broken cooldown store must not silence alerts.
		p.logger.Warn().
			Err(err).
			Str("symbol", quote.Symbol).
			Msg("cooldown check failed, alerting anyway")
		ok = true
	}
	if !ok {
		return nil
	}

	if err := p.sink.PublishSignificantMove(ctx, quote); err != nil {
		return fmt.Errorf("failed to publish significant move: %w", err)
	}

	p.logger.Info().
		Str("symbol", quote.Symbol).
		Str("change_percent", quote.ChangePercent.String()).
		Msg("significant move published")
	return nil
}

func (p *Publisher) isSignificant(quote *models.PriceQuote) bool {
	if quote.ChangePercent == nil {
		return false
	}
	return quote.ChangePercent.Abs().GreaterThanOrEqual(p.threshold)
}
