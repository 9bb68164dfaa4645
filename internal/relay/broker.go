package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broker fans a room frame out to every server instance. Each instance
// then delivers it to its own hub.
type Broker interface {
	Publish(ctx context.Context, roomID uuid.UUID, payload []byte) error
}

// LocalBroker is the single-instance broker: publishing is delivering.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(_ context.Context, roomID uuid.UUID, payload []byte) error {
	b.hub.Deliver(roomID, payload)
	return nil
}

const channelPrefix = "campusride:room:"

// RoomChannel is the Redis pub/sub channel for a room.
func RoomChannel(roomID uuid.UUID) string {
	return channelPrefix + roomID.String()
}

// RedisBroker publishes room frames on Redis so that every instance
// running Run sees them, including the publisher itself.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewRedisBroker(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, roomID uuid.UUID, payload []byte) error {
	if err := b.client.Publish(ctx, RoomChannel(roomID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to every room channel and delivers incoming frames to the
// local hub until ctx is cancelled. ready, if non-nil, is closed once the
// subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	b.logger.Info("relay subscribed to redis", zap.String("pattern", channelPrefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			roomID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
			if err != nil {
				b.logger.Warn("ignoring frame on unexpected channel", zap.String("channel", msg.Channel))
				continue
			}
			b.hub.Deliver(roomID, []byte(msg.Payload))
		}
	}
}
