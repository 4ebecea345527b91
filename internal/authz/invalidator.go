package authz

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the pub/sub channel carrying grant-cache clears so
// every replica drops its local cache when one instance applies an edit.
const InvalidationChannel = "vantage:grants:invalidate"

// Invalidator clears the local grant cache and broadcasts the clear to other
// replicas. Redis being unreachable degrades to local-only clearing; a
// failed broadcast is logged, never surfaced, because the local clear is the
// correctness-critical part on the instance that performed the write.
type Invalidator struct {
	cache  *GrantCache
	client *redis.Client
	warmer *Warmer
	logger *slog.Logger
}

// NewInvalidator constructs an Invalidator. client and warmer may be nil.
func NewInvalidator(cache *GrantCache, client *redis.Client, warmer *Warmer, logger *slog.Logger) *Invalidator {
	return &Invalidator{cache: cache, client: client, warmer: warmer, logger: logger}
}

// Invalidate clears the local cache, broadcasts the clear, and kicks off an
// optional warmup so the next request does not pay the rebuild.
func (i *Invalidator) Invalidate(ctx context.Context) {
	i.cache.Clear()
	if i.client != nil {
		if err := i.client.Publish(ctx, InvalidationChannel, "clear").Err(); err != nil && i.logger != nil {
			i.logger.Warn("broadcast cache invalidation", slog.Any("error", err))
		}
	}
	i.warmup(ctx)
}

// Listen applies remote clears until the context is cancelled. It should run
// in its own goroutine on every replica.
func (i *Invalidator) Listen(ctx context.Context) error {
	if i.client == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	pubsub := i.client.Subscribe(ctx, InvalidationChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			i.cache.Clear()
			i.warmup(ctx)
		}
	}
}

func (i *Invalidator) warmup(ctx context.Context) {
	if i.warmer == nil {
		return
	}
	go func() {
		if err := i.warmer.Warm(context.WithoutCancel(ctx)); err != nil && i.logger != nil {
			i.logger.Warn("grant cache warmup", slog.Any("error", err))
		}
	}()
}
