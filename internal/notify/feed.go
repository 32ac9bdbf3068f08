// Package notify implements the notification feed: the cached list, the
// unread count derived from it, mark-read writes and link resolution.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/realtime"
)

// refreshTimeout bounds a push-triggered refetch.
const refreshTimeout = 30 * time.Second

// Source is the backend surface the feed reads and writes.
type Source interface {
	Notifications(ctx context.Context) ([]model.Notification, error)
	MarkAllNotificationsRead(ctx context.Context) error
	MarkNotificationRead(ctx context.Context, id string) error
}

// Events is the realtime surface the feed listens on.
type Events interface {
	On(event string, handler realtime.Handler) (unsubscribe func())
}

// Key returns the cache key of a user's notification list.
func Key(userID string) cache.Key {
	return cache.Key{"notifications", userID}
}

// UnreadCount returns the number of items not yet read.
func UnreadCount(items []model.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

// Feed is one user's notification list backed by the shared cache.
type Feed struct {
	cache  *cache.Cache
	src    Source
	userID string
	logger *zap.Logger
}

// NewFeed creates a Feed. With an empty userID every query is disabled.
func NewFeed(c *cache.Cache, src Source, userID string, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{cache: c, src: src, userID: userID, logger: logger}
}

// Key returns the feed's cache key.
func (f *Feed) Key() cache.Key {
	return Key(f.userID)
}

// Items returns the notifications newest first, together with the query
// state (loading, stale, error).
func (f *Feed) Items(ctx context.Context) ([]model.Notification, cache.Result) {
	res := f.cache.Query(ctx, f.Key(), f.fetch, cache.Enabled(f.userID != ""))
	return itemsOf(res), res
}

// UnreadCount recomputes the unread badge from the current query result.
func (f *Feed) UnreadCount(ctx context.Context) int {
	items, _ := f.Items(ctx)
	return UnreadCount(items)
}

// MarkAllRead asks the backend to mark everything read, then refetches.
// The badge changes only when the refetched list arrives.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	if err := f.cache.Mutate(ctx, f.src.MarkAllNotificationsRead); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	f.cache.Invalidate(ctx, f.Key())
	return nil
}

// MarkRead marks one notification read, then refetches.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	err := f.cache.Mutate(ctx, func(ctx context.Context) error {
		return f.src.MarkNotificationRead(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	f.cache.Invalidate(ctx, f.Key())
	return nil
}

// Subscribe delivers every new version of the list.
func (f *Feed) Subscribe(fn func([]model.Notification, cache.Result)) (unsubscribe func()) {
	return f.cache.Subscribe(f.Key(), func(res cache.Result) {
		fn(itemsOf(res), res)
	})
}

// Attach refetches the feed whenever the server pushes a notification.
// The refetch runs off the channel's read goroutine.
func (f *Feed) Attach(ctx context.Context, events Events) (detach func()) {
	return events.On(realtime.EventNewNotification, func(json.RawMessage) {
		if f.userID == "" {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
			defer cancel()
			f.cache.Invalidate(ctx, f.Key())
			f.logger.Debug("notification feed refreshed after push", zap.String("user", f.userID))
		}()
	})
}

func (f *Feed) fetch(ctx context.Context) (any, error) {
	items, err := f.src.Notifications(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	return items, nil
}

func itemsOf(res cache.Result) []model.Notification {
	items, _ := cache.Value[[]model.Notification](res)
	return items
}

func sortNewestFirst(items []model.Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
