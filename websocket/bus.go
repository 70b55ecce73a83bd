package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anjiri1684/campus_manager/logger"
	"github.com/redis/go-redis/v9"
)

const DefaultBusChannel = "campus:ws"

// RedisBus relays deliveries between instances over redis pub/sub.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, log logger.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultBusChannel
	}
	return &RedisBus{rdb: rdb, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Subscribe returns once the subscription is confirmed by the server. The returned
// channel is closed when ctx ends, even if nobody is reading it.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Delivery, 256)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var d Delivery
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					b.log.WithError(err).Warn("Dropping malformed bus message", nil)
					continue
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
