package fcm

import (
	"context"
	"sync"
)

// TokenCache stores access tokens between exchanges.
type TokenCache interface {
	// Get returns false if no token is stored under key.
	Get(ctx context.Context, key string) (Token, bool, error)
	Set(ctx context.Context, key string, token Token) error
	Delete(ctx context.Context, key string) error
}

// MemoryCache is an in-process TokenCache.
type MemoryCache struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: make(map[string]Token)}
}

// Get returns the stored token.
func (c *MemoryCache) Get(_ context.Context, key string) (Token, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	token, ok := c.tokens[key]
	return token, ok, nil
}

// Set stores the token.
func (c *MemoryCache) Set(_ context.Context, key string, token Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[key] = token
	return nil
}

// Delete removes the token stored under key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tokens, key)
	return nil
}
