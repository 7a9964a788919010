package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stockbot/market-data-service/internal/models"
)

// Producer handles publishing price events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishPriceUpdate publishes a refreshed quote
func (p *Producer) PublishPriceUpdate(ctx context.Context, quote *models.PriceQuote) error {
	return p.publish(ctx, priceEventFrom(models.EventTypePriceUpdate, quote))
}

// PublishSignificantMove publishes a quote whose move crossed the alert
// threshold
func (p *Producer) PublishSignificantMove(ctx context.Context, quote *models.PriceQuote) error {
	return p.publish(ctx, priceEventFrom(models.EventTypeSignificantMove, quote))
}

func priceEventFrom(eventType string, quote *models.PriceQuote) models.PriceEvent {
	return models.PriceEvent{
		EventType:     eventType,
		Symbol:        quote.Symbol,
		Price:         quote.Price,
		ChangePercent: quote.ChangePercent,
		Timestamp:     time.Now().UTC(),
	}
}

// publish writes one event keyed by symbol, so a symbol's events stay
// ordered within their partition
func (p *Producer) publish(ctx context.Context, event models.PriceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Symbol),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
