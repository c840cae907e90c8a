package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"project-tracker-api/internal/models"
)

// ProjectEvent is the payload published for each new project.
type ProjectEvent struct {
	Type    string         `json:"type"`
	Project models.Project `json:"project"`
	SentAt  time.Time      `json:"sentAt"`
}

// RedisPublisher publishes new projects on a Redis channel for downstream
// mailers and dashboards.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisClient builds a pooled client for addr and verifies it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (r *RedisPublisher) Name() string { return "redis" }

func (r *RedisPublisher) Send(ctx context.Context, p models.Project) error {
	payload, err := json.Marshal(ProjectEvent{
		Type:    "project.created",
		Project: p,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode project event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish project event: %w", err)
	}
	return nil
}
