package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/candle-sync/pkg/models"
	"github.com/sirupsen/logrus"
)

const statusKeyPrefix = "sync:status:"

// StatusCache keeps the latest per-instrument sync status in Redis with a TTL.
// Entries expire on their own, Refresh re-arms the TTL without rewriting the
// payload so a caller can keep a hot entry alive between runs.
type StatusCache struct {
	redis  *RedisClient
	ttl    time.Duration
	logger *logrus.Entry
}

// NewStatusCache creates a status cache with the given entry lifetime
func NewStatusCache(redis *RedisClient, ttl time.Duration, logger *logrus.Logger) *StatusCache {
	return &StatusCache{
		redis:  redis,
		ttl:    ttl,
		logger: logger.WithField("component", "status-cache"),
	}
}

// Put stores the status for a symbol, resetting its TTL
func (sc *StatusCache) Put(ctx context.Context, status *models.SyncStatus) error {
	if err := sc.redis.SetJSON(ctx, statusKey(status.Symbol), status, sc.ttl); err != nil {
		return fmt.Errorf("failed to cache sync status: %w", err)
	}
	return nil
}

// Get returns the cached status for a symbol, nil when absent or expired
func (sc *StatusCache) Get(ctx context.Context, symbol string) (*models.SyncStatus, error) {
	var status models.SyncStatus
	found, err := sc.redis.GetJSON(ctx, statusKey(symbol), &status)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync status: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &status, nil
}

// Refresh re-arms the TTL on an existing entry and reports whether it was there
func (sc *StatusCache) Refresh(ctx context.Context, symbol string) (bool, error) {
	found, err := sc.redis.Expire(ctx, statusKey(symbol), sc.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to refresh sync status: %w", err)
	}
	return found, nil
}

// Invalidate removes cached statuses for the given symbols
func (sc *StatusCache) Invalidate(ctx context.Context, symbols ...string) error {
	keys := make([]string, len(symbols))
	for i, symbol := range symbols {
		keys[i] = statusKey(symbol)
	}
	return sc.redis.Delete(ctx, keys...)
}

// List returns all cached statuses
func (sc *StatusCache) List(ctx context.Context) ([]*models.SyncStatus, error) {
	keys, err := sc.redis.Keys(ctx, statusKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list sync statuses: %w", err)
	}

	statuses := make([]*models.SyncStatus, 0, len(keys))
	for _, key := range keys {
		var status models.SyncStatus
		found, err := sc.redis.GetJSON(ctx, key, &status)
		if err != nil {
			sc.logger.WithError(err).WithField("key", key).Warn("Skipping unreadable status entry")
			continue
		}
		if !found {
			// Expired between KEYS and GET
			continue
		}
		statuses = append(statuses, &status)
	}

	return statuses, nil
}

func statusKey(symbol string) string {
	return statusKeyPrefix + symbol
}
