// Package redis provides a Redis-backed draft.Backend for deployments
// running more than one instance, where drafts must be shared.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aanand-mishra/registration-api/internal/config"
)

// Client wraps the go-redis client.
type Client struct {
	*redis.Client
}

// New creates a client from cfg and checks the connection.
func New(ctx context.Context, cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis.New: url is not set")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis.New: parse url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Client{Client: client}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(client *redis.Client) *Client {
	return &Client{Client: client}
}

// Get returns the value under key and whether it exists.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis.Get: %w", err)
	}
	return value, true, nil
}

// Put stores value under key without expiry: drafts live until the
// application is submitted.
func (c *Client) Put(ctx context.Context, key, value string) error {
	if err := c.Client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis.Put: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis.Delete: %w", err)
	}
	return nil
}
