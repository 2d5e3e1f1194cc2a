package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes payloads onto a downstream feed channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type RedisBroker struct {
	Client *redis.Client
}

func NewRedisBroker(addr, password string, db int) *RedisBroker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisBroker{Client: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return b.Client.Publish(ctx, channel, data).Err()
}
