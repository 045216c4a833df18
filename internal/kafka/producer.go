package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/creatorhub/payout-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PayoutStatusEvent is published after every dispatch or verification
type PayoutStatusEvent struct {
	PayoutID           string  `json:"payoutId"`
	UserID             string  `json:"userId"`
	Method             string  `json:"method"`
	Amount             float64 `json:"amount"`
	Currency           string  `json:"currency,omitempty"`
	Status             string  `json:"status"`
	RequiresAction     string  `json:"requiresAction,omitempty"`
	ProviderReference  string  `json:"providerReference,omitempty"`
	InternalReference  string  `json:"internalReference,omitempty"`
	LastVerifiedStatus string  `json:"lastVerifiedStatus,omitempty"`
	Message            string  `json:"message,omitempty"`
	Timestamp          string  `json:"timestamp"`
}

// Producer publishes payout.status events
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

// PublishStatus publishes the record's current status, keyed by payout ID
func (p *Producer) PublishStatus(ctx context.Context, record *model.PayoutRecord) error {
	event := PayoutStatusEvent{
		PayoutID:           record.ID,
		UserID:             record.UserID,
		Method:             string(record.Method),
		Amount:             record.Amount,
		Currency:           record.Currency,
		Status:             string(record.Status),
		RequiresAction:     string(record.RequiresAction),
		ProviderReference:  record.ProviderReference,
		InternalReference:  record.InternalReference,
		LastVerifiedStatus: record.LastVerifiedStatus,
		Message:            record.Message,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("write status event: %w", err)
	}

	p.logger.Debug("Published payout status",
		zap.String("payoutId", record.ID),
		zap.String("status", string(record.Status)),
	)

	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
