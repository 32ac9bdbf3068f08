package sync_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/cache"
	agsync "github.com/nhle/agora/internal/sync"
	"github.com/nhle/agora/tests/testutil"
)

func nextMsg(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)

	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("no result message")
		return nil
	}
}

func TestPoller_RefreshesSubscribedKeys(t *testing.T) {
	c := cache.New()
	defer c.Close()

	key := cache.Key{"notifications", "u1"}
	var calls atomic.Int32
	c.Query(context.Background(), key, func(ctx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	})
	unsubscribe := c.Subscribe(key, func(cache.Result) {})
	defer unsubscribe()

	p := agsync.New(c)
	p.Register(agsync.Target{Name: "notifications", Key: key, Interval: 20 * time.Millisecond})

	cmd := p.Start()
	defer p.Stop()

	msg, ok := nextMsg(t, cmd).(agsync.SyncResultMsg)
	require.True(t, ok)
	assert.Equal(t, "notifications", msg.Name)
	assert.NoError(t, msg.Error)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].LastSync.IsZero())
}

func TestPoller_RefreshAllAndAuthErrors(t *testing.T) {
	c := cache.New()
	defer c.Close()

	key := cache.Key{"conversations", "u1"}
	var fail atomic.Bool
	c.Query(context.Background(), key, func(ctx context.Context) (any, error) {
		if fail.Load() {
			return nil, &api.AuthError{Method: "GET", Path: "/api/messages/conversations"}
		}
		return []string{}, nil
	})
	unsubscribe := c.Subscribe(key, func(cache.Result) {})
	defer unsubscribe()

	p := agsync.New(c)
	p.Register(agsync.Target{Name: "inbox", Key: key, Interval: time.Hour})
	p.Register(agsync.Target{Name: "feed", Key: cache.Key{"notifications", "u1"}, Interval: time.Hour})

	cmd := p.Start()
	defer p.Stop()
	assert.Nil(t, p.Start(), "second start is a no-op")

	fail.Store(true)
	p.RefreshTarget("inbox")

	msg, ok := nextMsg(t, cmd).(agsync.SyncResultMsg)
	require.True(t, ok)
	require.NotNil(t, msg.AuthError)
	assert.Equal(t, "inbox", msg.AuthError.Name)

	statuses := p.GetStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "feed", statuses[0].Name)
	assert.Equal(t, agsync.SyncError, statuses[1].State)

	fail.Store(false)
	p.RefreshAll()

	seen := map[string]bool{}
	for range 2 {
		msg := nextMsg(t, p.WaitForNextResult()).(agsync.SyncResultMsg)
		seen[msg.Name] = true
		assert.NoError(t, msg.Error)
	}
	assert.True(t, seen["inbox"])
	assert.True(t, seen["feed"])
}

func TestPoller_RecordsAndRestoresLastSync(t *testing.T) {
	db := testutil.NewTestStore(t)
	c := cache.New()
	defer c.Close()

	key := cache.Key{"notifications", "u1"}
	c.Query(context.Background(), key, func(ctx context.Context) (any, error) {
		return 1, nil
	})
	unsubscribe := c.Subscribe(key, func(cache.Result) {})
	defer unsubscribe()

	p := agsync.New(c, agsync.WithHistory(db))
	p.Register(agsync.Target{Name: "notifications", Key: key, Interval: time.Hour})
	assert.True(t, p.GetStatuses()[0].LastSync.IsZero())

	cmd := p.Start()
	p.RefreshTarget("notifications")
	_, ok := nextMsg(t, cmd).(agsync.SyncResultMsg)
	require.True(t, ok)
	p.Stop()

	synced := p.GetStatuses()[0].LastSync
	raw, found, err := db.GetSetting(context.Background(), agsync.HistoryKey("notifications"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, synced.UTC().Format(time.RFC3339Nano), raw)

	restored := agsync.New(c, agsync.WithHistory(db))
	restored.Register(agsync.Target{Name: "notifications", Key: key})
	assert.True(t, synced.Equal(restored.GetStatuses()[0].LastSync))
}

func TestPoller_WaitReturnsAfterStop(t *testing.T) {
	c := cache.New()
	defer c.Close()

	p := agsync.New(c)
	p.Register(agsync.Target{Name: "feed", Key: cache.Key{"notifications", "u1"}, Interval: time.Hour})

	cmd := p.Start()
	p.Stop()

	assert.Nil(t, nextMsg(t, cmd))
	assert.Nil(t, p.WaitForNextResult())
}
