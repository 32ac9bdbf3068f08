// Package chat implements the inbox and the per-conversation chat window on
// top of the shared cache and the realtime channel.
package chat

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/realtime"
)

const refreshTimeout = 30 * time.Second

// Source is the backend surface for messaging.
type Source interface {
	Conversations(ctx context.Context) ([]model.ConversationSummary, error)
	Messages(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
	SendMessage(ctx context.Context, msg model.ChatMessage) (*model.ChatMessage, error)
}

// Events is the realtime surface chat listens and emits on.
type Events interface {
	On(event string, handler realtime.Handler) (unsubscribe func())
	Emit(event string, payload any) error
}

// ConversationsKey returns the cache key of a user's inbox.
func ConversationsKey(userID string) cache.Key {
	return cache.Key{"conversations", userID}
}

// MessagesKey returns the cache key of a conversation's history.
func MessagesKey(conversationID string) cache.Key {
	return cache.Key{"messages", conversationID}
}

// Conversations is the inbox list.
type Conversations struct {
	cache  *cache.Cache
	src    Source
	userID string
	logger *zap.Logger
}

// NewConversations creates the inbox for userID.
func NewConversations(c *cache.Cache, src Source, userID string, logger *zap.Logger) *Conversations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversations{cache: c, src: src, userID: userID, logger: logger}
}

// Key returns the inbox cache key.
func (c *Conversations) Key() cache.Key {
	return ConversationsKey(c.userID)
}

// List returns the conversations, most recently active first.
func (c *Conversations) List(ctx context.Context) ([]model.ConversationSummary, cache.Result) {
	res := c.cache.Query(ctx, c.Key(), c.fetch, cache.Enabled(c.userID != ""))
	return summariesOf(res), res
}

// Subscribe delivers every new version of the list.
func (c *Conversations) Subscribe(fn func([]model.ConversationSummary, cache.Result)) (unsubscribe func()) {
	return c.cache.Subscribe(c.Key(), func(res cache.Result) {
		fn(summariesOf(res), res)
	})
}

// Attach refetches the inbox on every delivered message, regardless of
// which conversation it belongs to.
func (c *Conversations) Attach(ctx context.Context, events Events) (detach func()) {
	return events.On(realtime.EventNewMessage, func(json.RawMessage) {
		if c.userID == "" {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
			defer cancel()
			c.cache.Invalidate(ctx, c.Key())
		}()
	})
}

func (c *Conversations) fetch(ctx context.Context) (any, error) {
	list, err := c.src.Conversations(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list, nil
}

func summariesOf(res cache.Result) []model.ConversationSummary {
	list, _ := cache.Value[[]model.ConversationSummary](res)
	return list
}
