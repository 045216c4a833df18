package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/creatorhub/payout-service/internal/model"
	"github.com/creatorhub/payout-service/internal/service"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// WithdrawalRequestedEvent is the event emitted when a user's withdrawal
// is approved and ready for payout
type WithdrawalRequestedEvent struct {
	UserID      string  `json:"userId"`
	Method      string  `json:"method"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
	PayPalEmail string  `json:"paypalEmail,omitempty"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	CardNumber  string  `json:"cardNumber,omitempty"`
	CVV         string  `json:"cvv,omitempty"`
	ExpiryDate  string  `json:"expiryDate,omitempty"`
	FullName    string  `json:"fullName,omitempty"`
	Email       string  `json:"email,omitempty"`
	Note        string  `json:"note,omitempty"`
}

// Consumer consumes withdrawal.requested events and dispatches payouts
type Consumer struct {
	reader  *kafka.Reader
	service *service.PayoutService
	logger  *zap.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers string, topic string, groupID string, svc *service.PayoutService, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokers},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{
		reader:  reader,
		service: svc,
		logger:  logger,
	}
}

// Start starts consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("Failed to read message", zap.Error(err))
				continue
			}

			if err := c.handleMessage(ctx, msg); err != nil {
				c.logger.Error("Failed to handle message",
					zap.String("topic", msg.Topic),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event WithdrawalRequestedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	c.logger.Info("Received withdrawal.requested event",
		zap.String("userId", event.UserID),
		zap.String("method", event.Method),
		zap.Float64("amount", event.Amount),
	)

	_, err := c.service.Dispatch(ctx, &model.WithdrawalRequest{
		UserID:      event.UserID,
		Method:      model.Method(event.Method),
		Amount:      event.Amount,
		Currency:    event.Currency,
		PayPalEmail: event.PayPalEmail,
		PhoneNumber: event.PhoneNumber,
		CardNumber:  event.CardNumber,
		CVV:         event.CVV,
		ExpiryDate:  event.ExpiryDate,
		FullName:    event.FullName,
		Email:       event.Email,
		Note:        event.Note,
	})
	if err != nil {
		return fmt.Errorf("dispatch payout: %w", err)
	}

	return nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
