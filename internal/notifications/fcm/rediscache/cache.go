// Package rediscache shares Firebase access tokens between processes via Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications/fcm"
	"github.com/redis/go-redis/v9"
)

// Cache implements fcm.TokenCache on Redis.
type Cache struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// New creates a Redis-backed token cache. Keys are stored under prefix.
func New(client *redis.Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Connect opens a client for addr and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get returns the token stored under key.
func (c *Cache) Get(ctx context.Context, key string) (fcm.Token, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fcm.Token{}, false, nil
	}
	if err != nil {
		return fcm.Token{}, false, fmt.Errorf("get token: %w", err)
	}

	var token fcm.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fcm.Token{}, false, fmt.Errorf("unmarshal token: %w", err)
	}
	return token, true, nil
}

// Set stores the token until it expires. Expired tokens are not stored.
func (c *Cache) Set(ctx context.Context, key string, token fcm.Token) error {
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

// Delete removes the token stored under key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
