package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "tokenkit/internal/errors"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the Redis list events are pushed to.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	List     string
}

// RedisPublisher LPUSHes JSON-encoded events onto a list; consumers BRPOP.
type RedisPublisher struct {
	client *redis.Client
	list   string
}

// NewRedisPublisher connects and pings the server.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, apperrors.Wrap(apperrors.CodeInitializationFailure, err, fmt.Sprintf("connect redis %s", cfg.Address))
	}
	return newRedisPublisher(client, cfg.List), nil
}

func newRedisPublisher(client *redis.Client, list string) *RedisPublisher {
	if list == "" {
		list = "tokenkit:events"
	}
	return &RedisPublisher{client: client, list: list}
}

// Publish pushes event onto the list.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePublishFailure, err, "encode event")
	}
	if err := p.client.LPush(ctx, p.list, body).Err(); err != nil {
		return apperrors.Wrap(apperrors.CodePublishFailure, err, fmt.Sprintf("push event %s", event.ID))
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
