package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/agora/internal/store"
)

// Persister saves and restores cache snapshots. *store.SQLiteStore
// satisfies it.
type Persister interface {
	SaveCacheEntry(ctx context.Context, entry store.CacheEntry) error
	LoadCacheEntries(ctx context.Context, prefix string) ([]store.CacheEntry, error)
	DeleteCacheEntries(ctx context.Context, prefix string) error
}

// Hydrate loads persisted snapshots into the cache. Restored entries are
// marked stale, so the first Query serves them and revalidates.
func (c *Cache) Hydrate(ctx context.Context) (int, error) {
	if c.persister == nil {
		return 0, nil
	}

	entries, err := c.persister.LoadCacheEntries(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("loading cache snapshots: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, se := range entries {
		e := c.entryLocked(parseKey(se.Key))
		if !e.updatedAt.IsZero() {
			continue
		}
		e.data = json.RawMessage(se.Data)
		e.updatedAt = se.UpdatedAt
		e.invalidated = true
		n++
	}
	return n, nil
}

func (c *Cache) persist(ctx context.Context, key Key, data any, updatedAt time.Time) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("cache snapshot not serializable",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return
	}

	err = c.persister.SaveCacheEntry(ctx, store.CacheEntry{
		Key:       key.String(),
		Data:      raw,
		UpdatedAt: updatedAt,
	})
	if err != nil {
		c.logger.Warn("saving cache snapshot",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}
