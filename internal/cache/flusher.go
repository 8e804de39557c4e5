// Package cache invalidates the platform's Redis cache after schema changes.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Flusher removes cached entries under a single namespace. Migrations change
// the shape of stored data, so any cached responses built before a run are
// stale afterwards.
type Flusher struct {
	client    *redis.Client
	namespace string
	logger    zerolog.Logger
}

// NewFlusher wires a Flusher for the given namespace. A nil client yields a
// no-op Flusher so callers without Redis configured need no special casing.
func NewFlusher(client *redis.Client, namespace string, logger zerolog.Logger) *Flusher {
	return &Flusher{
		client:    client,
		namespace: namespace,
		logger:    logger.With().Str("component", "cache").Logger(),
	}
}

// Flush deletes every key under the configured namespace. Keys are collected
// with SCAN and removed in one pipeline so the flush stays a single round
// trip even for large caches.
func (f *Flusher) Flush(ctx context.Context) error {
	if f == nil || f.client == nil {
		return nil
	}

	pattern := f.namespace + ":*"

	iter := f.client.Scan(ctx, 0, pattern, 0).Iterator()
	pipe := f.client.Pipeline()

	var keys int
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		keys++
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if keys == 0 {
		f.logger.Debug().Str("pattern", pattern).Msg("cache already empty")
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}

	f.logger.Info().Int("keys", keys).Str("pattern", pattern).Msg("cache flushed")

	return nil
}
