package kds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

const Topic = "pos-orders-synced"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// syncedOrderEvent is the payload the kitchen display consumes once an
// offline order lands on the backend.
type syncedOrderEvent struct {
	OrderID       string    `json:"order_id"`
	ServerOrderID string    `json:"server_order_id"`
	TotalCents    int64     `json:"total_cents"`
	PaymentMethod string    `json:"payment_method"`
	QueuedAt      time.Time `json:"queued_at"`
	SyncedAt      time.Time `json:"synced_at"`
}

// Forwarder publishes replayed offline orders to the kitchen display
// topic. Paid online orders reach the kitchen through the backend itself,
// only recovered offline tickets need this side channel.
type Forwarder struct {
	writer messageWriter
}

func NewForwarder(brokers []string) *Forwarder {
	return &Forwarder{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  Topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (f *Forwarder) ForwardSynced(ctx context.Context, order domain.QueuedOrder, serverOrderID string) error {
	event := syncedOrderEvent{
		OrderID:       order.ID,
		ServerOrderID: serverOrderID,
		TotalCents:    order.TotalMinor,
		PaymentMethod: string(order.PaymentMethod),
		QueuedAt:      order.CreatedAt,
		SyncedAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal synced order event: %w", err)
	}

	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("offline_order_synced")},
		},
	})
	if err != nil {
		return fmt.Errorf("write synced order event: %w", err)
	}
	log.Debug().Str("order_id", order.ID).Str("server_order_id", serverOrderID).Msg("order forwarded to kitchen")
	return nil
}

func (f *Forwarder) Close() error {
	return f.writer.Close()
}
