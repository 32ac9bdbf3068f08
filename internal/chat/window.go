package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/observe"
	"github.com/nhle/agora/internal/realtime"
)

// ErrEmptyMessage is returned by Send for blank content.
var ErrEmptyMessage = errors.New("message is empty")

// Window holds the ordered messages of one open conversation. Messages
// are deduplicated by client id and by server id, so the server's echo of
// an optimistic send replaces it instead of appearing twice.
type Window struct {
	cache          *cache.Cache
	src            Source
	events         Events
	conversationID string
	selfID         string
	peerID         string
	logger         *zap.Logger
	now            func() time.Time

	mu       sync.Mutex
	messages []model.ChatMessage
	subs     observe.Registry[[]model.ChatMessage]
}

// NewWindow opens a chat window between selfID and peerID.
func NewWindow(
	c *cache.Cache,
	src Source,
	events Events,
	conversationID, selfID, peerID string,
	logger *zap.Logger,
) *Window {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Window{
		cache:          c,
		src:            src,
		events:         events,
		conversationID: conversationID,
		selfID:         selfID,
		peerID:         peerID,
		logger:         logger,
		now:            time.Now,
	}
}

// ConversationID returns the conversation shown in the window.
func (w *Window) ConversationID() string {
	return w.conversationID
}

// Load merges the conversation history into the window.
func (w *Window) Load(ctx context.Context) error {
	res := w.cache.Query(ctx, MessagesKey(w.conversationID), func(ctx context.Context) (any, error) {
		return w.src.Messages(ctx, w.conversationID)
	})
	if res.IsError() && !res.HasData() {
		return fmt.Errorf("loading conversation %s: %w", w.conversationID, res.Err)
	}

	history, _ := cache.Value[[]model.ChatMessage](res)
	w.mergeAll(history)
	return nil
}

// Messages returns a snapshot of the window's messages, oldest first.
func (w *Window) Messages() []model.ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.ChatMessage(nil), w.messages...)
}

// Subscribe registers fn for every change to the message list.
func (w *Window) Subscribe(fn func([]model.ChatMessage)) (unsubscribe func()) {
	return w.subs.Add(fn)
}

// Send appends the message optimistically, persists it through the API
// and announces it on the realtime channel. A failed write removes the
// optimistic copy; nothing is retried or queued.
func (w *Window) Send(ctx context.Context, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	msg := model.ChatMessage{
		ClientID:       uuid.NewString(),
		ConversationID: w.conversationID,
		SenderID:       w.selfID,
		RecipientID:    w.peerID,
		Content:        content,
		CreatedAt:      w.now().UTC(),
	}
	w.mergeAll([]model.ChatMessage{msg})

	stored, err := w.src.SendMessage(ctx, msg)
	if err != nil {
		w.remove(msg.ClientID)
		return nil, fmt.Errorf("sending message: %w", err)
	}
	if stored.ClientID == "" {
		stored.ClientID = msg.ClientID
	}
	if stored.ConversationID == "" {
		stored.ConversationID = w.conversationID
	}
	w.mergeAll([]model.ChatMessage{*stored})

	if err := w.events.Emit(realtime.EventSendMessage, stored); err != nil {
		// The message is persisted; the recipient sees it on next refetch.
		w.logger.Debug("realtime announce skipped",
			zap.String("conversation", w.conversationID),
			zap.Error(err),
		)
	}

	w.record(ctx)
	w.cache.Invalidate(ctx, cache.Key{"conversations"})
	return stored, nil
}

// Attach appends inbound messages that belong to this conversation and
// merges refetched history while the window is open.
func (w *Window) Attach() (detach func()) {
	key := MessagesKey(w.conversationID)

	unsubscribe := w.cache.Subscribe(key, func(res cache.Result) {
		if history, ok := cache.Value[[]model.ChatMessage](res); ok {
			w.mergeAll(history)
		}
	})

	off := w.events.On(realtime.EventNewMessage, func(payload json.RawMessage) {
		var msg model.ChatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			w.logger.Warn("dropping malformed message", zap.Error(err))
			return
		}
		if !w.belongs(msg) {
			return
		}
		w.mergeAll([]model.ChatMessage{msg})

		// Off the channel's read goroutine.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			w.record(ctx)
		}()
	})

	return func() {
		off()
		unsubscribe()
	}
}

// record writes the confirmed messages back to the history entry and
// invalidates it, so a reopened window starts from what was on screen.
func (w *Window) record(ctx context.Context) {
	w.mu.Lock()
	confirmed := make([]model.ChatMessage, 0, len(w.messages))
	for _, m := range w.messages {
		if !m.Pending() {
			confirmed = append(confirmed, m)
		}
	}
	w.mu.Unlock()

	key := MessagesKey(w.conversationID)
	w.cache.Set(key, confirmed)
	w.cache.Invalidate(ctx, key)
}

func (w *Window) belongs(msg model.ChatMessage) bool {
	if msg.ConversationID != "" {
		return msg.ConversationID == w.conversationID
	}
	return (msg.SenderID == w.peerID && msg.RecipientID == w.selfID) ||
		(msg.SenderID == w.selfID && msg.RecipientID == w.peerID)
}

// mergeAll folds msgs into the window and notifies subscribers once if
// anything changed.
func (w *Window) mergeAll(msgs []model.ChatMessage) {
	w.mu.Lock()
	changed := false
	for _, m := range msgs {
		if w.mergeLocked(m) {
			changed = true
		}
	}
	if changed {
		sort.SliceStable(w.messages, func(i, j int) bool {
			return w.messages[i].CreatedAt.Before(w.messages[j].CreatedAt)
		})
	}
	snapshot := append([]model.ChatMessage(nil), w.messages...)
	w.mu.Unlock()

	if changed {
		w.subs.Notify(snapshot)
	}
}

func (w *Window) mergeLocked(m model.ChatMessage) bool {
	var matched []int
	for i, have := range w.messages {
		sameClient := m.ClientID != "" && have.ClientID == m.ClientID
		sameServer := m.ID != "" && have.ID == m.ID
		if sameClient || sameServer {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		w.messages = append(w.messages, m)
		return true
	}

	first := w.messages[matched[0]]
	// A confirmed copy is never downgraded to a pending one.
	if m.Pending() && !first.Pending() {
		return false
	}
	if len(matched) == 1 && m == first {
		return false
	}
	if m.ClientID == "" {
		m.ClientID = first.ClientID
	}
	w.messages[matched[0]] = m

	// An echo without a client id may have landed before the confirmed
	// copy; collapse it.
	for k := len(matched) - 1; k >= 1; k-- {
		i := matched[k]
		w.messages = append(w.messages[:i], w.messages[i+1:]...)
	}
	return true
}

func (w *Window) remove(clientID string) {
	w.mu.Lock()
	kept := w.messages[:0]
	for _, m := range w.messages {
		if m.ClientID != clientID {
			kept = append(kept, m)
		}
	}
	w.messages = kept
	snapshot := append([]model.ChatMessage(nil), w.messages...)
	w.mu.Unlock()

	w.subs.Notify(snapshot)
}
