package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Nop and by RedisClient when a key is absent.
var ErrMiss = errors.New("cache: miss")

// Client defines the subset of cache commands the proxy needs.
type Client interface {
	// Get decodes the stored value into dest or returns ErrMiss.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Nop is used when no cache is configured; every read misses.
type Nop struct{}

var _ Client = Nop{}

func (Nop) Get(context.Context, string, any) error                { return ErrMiss }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Del(context.Context, string) error                     { return nil }
