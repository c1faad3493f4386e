package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BrokerChannel is the Redis pub/sub channel carrying group deliveries between instances.
const BrokerChannel = "ws:groups"

type brokerEnvelope struct {
	Group   string          `json:"group"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBroker publishes group sends on Redis so every instance reaches its local members.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

// NewRedisBroker constructs a RedisBroker delivering into hub.
func NewRedisBroker(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, hub: hub, logger: logger}
}

// Publish sends an encoded frame for group to all instances.
func (b *RedisBroker) Publish(ctx context.Context, group string, payload []byte) error {
	body, err := json.Marshal(brokerEnvelope{Group: group, Payload: payload})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, BrokerChannel, body).Err()
}

// Run delivers broker traffic to the local hub until ctx is cancelled. ready is closed
// once the subscription is active.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, BrokerChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var envelope brokerEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				b.logger.Warn("dropping malformed broker message", zap.Error(err))
				continue
			}
			b.hub.Deliver(envelope.Group, envelope.Payload)
		}
	}
}
