// Package cache defines the byte-oriented cache used for computed metrics and LLM summaries.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values under string keys with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
