package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spacesedan/xpulse/internal/metrics"
	"github.com/spacesedan/xpulse/internal/models"
)

const DEFAULT_VALKEY_TTL = 24 * time.Hour

// ValkeyStore is the subset of clients.ValkeyClient the cache needs.
type ValkeyStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// ValkeyCache shares results across processes. Errors are logged and treated
// as misses so a Valkey outage only costs extra remote calls.
type ValkeyCache struct {
	store ValkeyStore
	ttl   time.Duration
}

func NewValkeyCache(store ValkeyStore, ttl time.Duration) *ValkeyCache {
	if ttl <= 0 {
		ttl = DEFAULT_VALKEY_TTL
	}
	return &ValkeyCache{store: store, ttl: ttl}
}

func (c *ValkeyCache) Get(ctx context.Context, key string) ([]models.SentimentResult, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("[ValkeyCache] Get failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()))
		metrics.CacheRequestsTotal.WithLabelValues("valkey", "error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheRequestsTotal.WithLabelValues("valkey", "miss").Inc()
		return nil, false
	}

	var results []models.SentimentResult
	if err := json.Unmarshal(raw, &results); err != nil {
		slog.Warn("[ValkeyCache] Stored value is not a result array",
			slog.String("key", key),
			slog.String("error", err.Error()))
		metrics.CacheRequestsTotal.WithLabelValues("valkey", "error").Inc()
		return nil, false
	}

	metrics.CacheRequestsTotal.WithLabelValues("valkey", "hit").Inc()
	return results, true
}

func (c *ValkeyCache) Set(ctx context.Context, key string, results []models.SentimentResult) {
	raw, err := json.Marshal(results)
	if err != nil {
		slog.Error("[ValkeyCache] Failed to marshal results",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}

	written, err := c.store.SetNX(ctx, key, raw, c.ttl)
	if err != nil {
		slog.Warn("[ValkeyCache] Set failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}

	slog.Debug("[ValkeyCache] Stored results",
		slog.String("key", key),
		slog.Bool("written", written),
		slog.Int("count", len(results)))
}
