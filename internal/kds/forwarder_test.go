package kds

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

type capturingWriter struct {
	messages []kafka.Message
	err      error
}

func (c *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, msgs...)
	return nil
}

func (c *capturingWriter) Close() error { return nil }

func TestForwardSyncedPublishesEvent(t *testing.T) {
	writer := &capturingWriter{}
	fwd := &Forwarder{writer: writer}

	queuedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	order := domain.QueuedOrder{
		ID:            "off-42",
		TotalMinor:    1350,
		PaymentMethod: domain.MethodCash,
		CreatedAt:     queuedAt,
	}
	require.NoError(t, fwd.ForwardSynced(context.Background(), order, "srv-7"))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	require.Equal(t, []byte("off-42"), msg.Key)
	require.Len(t, msg.Headers, 1)
	require.Equal(t, "event_type", msg.Headers[0].Key)
	require.Equal(t, []byte("offline_order_synced"), msg.Headers[0].Value)

	var event syncedOrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	require.Equal(t, "off-42", event.OrderID)
	require.Equal(t, "srv-7", event.ServerOrderID)
	require.Equal(t, int64(1350), event.TotalCents)
	require.Equal(t, "cash", event.PaymentMethod)
	require.True(t, event.QueuedAt.Equal(queuedAt))
}

func TestForwardSyncedWrapsWriteError(t *testing.T) {
	writer := &capturingWriter{err: errors.New("broker unavailable")}
	fwd := &Forwarder{writer: writer}

	err := fwd.ForwardSynced(context.Background(), domain.QueuedOrder{ID: "off-1"}, "srv-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "write synced order event")
}
