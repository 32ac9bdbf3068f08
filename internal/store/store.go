package store

import (
	"context"
	"time"
)

// CacheEntry is a persisted snapshot of one Remote Resource Cache entry.
type CacheEntry struct {
	Key       string    `db:"key"`
	Data      []byte    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Store defines the local persistence interface: a key/value settings
// table and the snapshot table behind the resource cache.
type Store interface {
	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	// === Cache snapshots ===

	SaveCacheEntry(ctx context.Context, entry CacheEntry) error
	LoadCacheEntry(ctx context.Context, key string) (*CacheEntry, error)
	LoadCacheEntries(ctx context.Context, prefix string) ([]CacheEntry, error)
	DeleteCacheEntries(ctx context.Context, prefix string) error
}
