package feed_test

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/keys"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/notify"
	"github.com/nhle/agora/internal/ui/feed"
)

type source struct {
	mu     sync.Mutex
	items  []model.Notification
	marked []string
}

func (s *source) Notifications(ctx context.Context) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.items...), nil
}

func (s *source) MarkAllNotificationsRead(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i].Read = true
	}
	return nil
}

func (s *source) MarkNotificationRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, id)
	return nil
}

// run executes cmd and flattens batches into their messages.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func newFeed(t *testing.T, items ...model.Notification) (*source, *notify.Feed) {
	t.Helper()
	c := cache.New()
	t.Cleanup(c.Close)
	src := &source{items: items}
	return src, notify.NewFeed(c, src, "u1", nil)
}

func load(t *testing.T, m feed.Model) feed.Model {
	t.Helper()
	msgs := run(m.Load())
	require.Len(t, msgs, 1)
	m, _ = m.Update(msgs[0])
	return m
}

func TestFeed_SignedOut(t *testing.T) {
	m := feed.New(nil, keys.DefaultKeyMap(), 80, 24)

	assert.Nil(t, m.Load())
	assert.Contains(t, m.View(), "Sign in")
}

func TestFeed_LoadCountsUnread(t *testing.T) {
	_, f := newFeed(t,
		model.Notification{ID: "n1", Type: model.NotificationComment, Message: "<b>Ana</b> replied", EntityID: "p1"},
		model.Notification{ID: "n2", Type: model.NotificationFollow, Read: true, SenderInfo: model.SenderInfo{ID: "u2"}},
	)

	m := load(t, feed.New(f, keys.DefaultKeyMap(), 100, 30))

	assert.Equal(t, 1, m.Unread())
	assert.Contains(t, m.View(), "1 unread")
	assert.Contains(t, m.View(), "Ana")
}

func TestFeed_SelectOpensLinkAndMarksRead(t *testing.T) {
	src, f := newFeed(t,
		model.Notification{ID: "n1", Type: model.NotificationComment, EntityID: "p1", CommentID: "c9"},
	)
	m := load(t, feed.New(f, keys.DefaultKeyMap(), 100, 30))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msgs := run(cmd)
	require.Len(t, msgs, 2)

	var opened *feed.OpenLinkMsg
	for _, msg := range msgs {
		switch msg := msg.(type) {
		case feed.OpenLinkMsg:
			opened = &msg
		case feed.ActionDoneMsg:
			assert.Equal(t, "mark read", msg.Action)
			assert.NoError(t, msg.Err)
		}
	}
	require.NotNil(t, opened)
	assert.Equal(t, notify.RoutePost, opened.Route.Kind)
	assert.Equal(t, "p1", opened.Route.ID)
	assert.Equal(t, "c9", opened.Route.Highlight)
	assert.Equal(t, []string{"n1"}, src.marked)
}

func TestFeed_MarkAllReadSkippedWhenNothingUnread(t *testing.T) {
	_, f := newFeed(t, model.Notification{ID: "n1", Type: model.NotificationFollow, Read: true})
	m := load(t, feed.New(f, keys.DefaultKeyMap(), 100, 30))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	assert.Nil(t, cmd)
}

func TestFeed_KeepsItemsOnFailedRefresh(t *testing.T) {
	_, f := newFeed(t, model.Notification{ID: "n1", Type: model.NotificationMention})
	m := load(t, feed.New(f, keys.DefaultKeyMap(), 100, 30))

	m, _ = m.Update(feed.ItemsMsg{Err: assert.AnError})

	assert.Equal(t, 1, m.Unread())
}
