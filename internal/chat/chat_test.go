package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/chat"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/realtime"
	"github.com/nhle/agora/tests/testutil"
)

type fakeSource struct {
	mu            sync.Mutex
	conversations []model.ConversationSummary
	history       []model.ChatMessage
	convFetches   int
	sendErr       error
	onSend        func(model.ChatMessage)
	sent          []model.ChatMessage
}

func (s *fakeSource) Conversations(ctx context.Context) ([]model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convFetches++
	return append([]model.ConversationSummary(nil), s.conversations...), nil
}

func (s *fakeSource) Messages(ctx context.Context, id string) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatMessage(nil), s.history...), nil
}

func (s *fakeSource) SendMessage(ctx context.Context, msg model.ChatMessage) (*model.ChatMessage, error) {
	if s.onSend != nil {
		s.onSend(msg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sent = append(s.sent, msg)
	stored := msg
	stored.ID = "srv-" + msg.ClientID[:8]
	return &stored, nil
}

func (s *fakeSource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convFetches
}

type fakeEvents struct {
	mu       sync.Mutex
	handlers map[string][]realtime.Handler
	emitted  []string
	emitErr  error
}

func (e *fakeEvents) On(event string, h realtime.Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[string][]realtime.Handler)
	}
	e.handlers[event] = append(e.handlers[event], h)
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.handlers[event] = nil
	}
}

func (e *fakeEvents) Emit(event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.emitErr != nil {
		return e.emitErr
	}
	e.emitted = append(e.emitted, event)
	return nil
}

func (e *fakeEvents) fire(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	e.mu.Lock()
	hs := append([]realtime.Handler(nil), e.handlers[event]...)
	e.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}

func newWindow(t *testing.T, src *fakeSource, events chat.Events) *chat.Window {
	t.Helper()
	c := cache.New()
	t.Cleanup(c.Close)
	return chat.NewWindow(c, src, events, "c1", "me", "peer", nil)
}

func TestWindow_SendIsOptimistic(t *testing.T) {
	src := &fakeSource{}
	events := &fakeEvents{}
	w := newWindow(t, src, events)

	var during []model.ChatMessage
	src.onSend = func(model.ChatMessage) { during = w.Messages() }

	stored, err := w.Send(context.Background(), "  be here now  ")
	require.NoError(t, err)

	require.Len(t, during, 1)
	assert.True(t, during[0].Pending())
	assert.Equal(t, "be here now", during[0].Content)
	assert.NotEmpty(t, during[0].ClientID)

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Pending())
	assert.Equal(t, stored.ID, msgs[0].ID)
	assert.Equal(t, []string{realtime.EventSendMessage}, events.emitted)
}

func TestWindow_ServerEchoDoesNotDuplicate(t *testing.T) {
	src := &fakeSource{}
	events := &fakeEvents{}
	w := newWindow(t, src, events)
	detach := w.Attach()
	defer detach()

	stored, err := w.Send(context.Background(), "hello")
	require.NoError(t, err)

	events.fire(t, realtime.EventNewMessage, stored)

	echoWithoutClientID := *stored
	echoWithoutClientID.ClientID = ""
	events.fire(t, realtime.EventNewMessage, echoWithoutClientID)

	assert.Len(t, w.Messages(), 1)
}

func TestWindow_EchoBeforeConfirmation(t *testing.T) {
	src := &fakeSource{}
	events := &fakeEvents{}
	w := newWindow(t, src, events)
	detach := w.Attach()
	defer detach()

	src.onSend = func(msg model.ChatMessage) {
		echo := msg
		echo.ID = "srv-" + msg.ClientID[:8]
		echo.ClientID = ""
		events.fire(t, realtime.EventNewMessage, echo)
	}

	_, err := w.Send(context.Background(), "quick")
	require.NoError(t, err)

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].ClientID)
	assert.False(t, msgs[0].Pending())
}

func TestWindow_SendFailureRemovesOptimisticCopy(t *testing.T) {
	src := &fakeSource{sendErr: errors.New("500")}
	events := &fakeEvents{}
	w := newWindow(t, src, events)

	var lengths []int
	unsubscribe := w.Subscribe(func(msgs []model.ChatMessage) { lengths = append(lengths, len(msgs)) })
	defer unsubscribe()

	_, err := w.Send(context.Background(), "lost")
	require.Error(t, err)

	assert.Empty(t, w.Messages())
	assert.Equal(t, []int{1, 0}, lengths)
	assert.Empty(t, events.emitted)
}

func TestWindow_SendWhileDisconnectedStillPersists(t *testing.T) {
	src := &fakeSource{}
	events := &fakeEvents{emitErr: realtime.ErrNotConnected}
	w := newWindow(t, src, events)

	_, err := w.Send(context.Background(), "offline-ish")
	require.NoError(t, err)
	assert.Len(t, src.sent, 1)
}

func TestWindow_RejectsEmptyMessage(t *testing.T) {
	w := newWindow(t, &fakeSource{}, &fakeEvents{})

	_, err := w.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)
}

func TestWindow_AttachFiltersOtherConversations(t *testing.T) {
	events := &fakeEvents{}
	w := newWindow(t, &fakeSource{}, events)
	detach := w.Attach()

	now := time.Now()
	events.fire(t, realtime.EventNewMessage, model.ChatMessage{ID: "m1", ConversationID: "c1", Content: "in", CreatedAt: now})
	events.fire(t, realtime.EventNewMessage, model.ChatMessage{ID: "m2", ConversationID: "c2", Content: "elsewhere", CreatedAt: now})
	events.fire(t, realtime.EventNewMessage, model.ChatMessage{ID: "m3", SenderID: "peer", RecipientID: "me", Content: "direct", CreatedAt: now.Add(time.Second)})
	events.fire(t, realtime.EventNewMessage, "garbage")

	msgs := w.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m3", msgs[1].ID)

	detach()
	events.fire(t, realtime.EventNewMessage, model.ChatMessage{ID: "m4", ConversationID: "c1"})
	assert.Len(t, w.Messages(), 2)
}

func TestWindow_LoadOrdersHistory(t *testing.T) {
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	src := &fakeSource{history: []model.ChatMessage{
		{ID: "m2", ConversationID: "c1", Content: "second", CreatedAt: base.Add(time.Minute)},
		{ID: "m1", ConversationID: "c1", Content: "first", CreatedAt: base},
	}}
	w := newWindow(t, src, &fakeEvents{})

	require.NoError(t, w.Load(context.Background()))
	require.NoError(t, w.Load(context.Background()))

	msgs := w.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
}

func TestWindow_ReopenShowsSentMessage(t *testing.T) {
	c := cache.New(cache.WithStaleTime(time.Hour))
	defer c.Close()

	src := &fakeSource{}
	first := chat.NewWindow(c, src, &fakeEvents{}, "c1", "me", "peer", nil)
	require.NoError(t, first.Load(context.Background()))

	stored, err := first.Send(context.Background(), "still here")
	require.NoError(t, err)
	require.Len(t, first.Messages(), 1)

	reopened := chat.NewWindow(c, src, &fakeEvents{}, "c1", "me", "peer", nil)
	require.NoError(t, reopened.Load(context.Background()))

	msgs := reopened.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, stored.ID, msgs[0].ID)
}

func TestWindow_InboundMessageReachesHistory(t *testing.T) {
	c := cache.New(cache.WithStaleTime(time.Hour))
	defer c.Close()

	src := &fakeSource{}
	events := &fakeEvents{}
	w := chat.NewWindow(c, src, events, "c1", "me", "peer", nil)
	require.NoError(t, w.Load(context.Background()))
	detach := w.Attach()
	defer detach()

	inbound := model.ChatMessage{ID: "m1", ConversationID: "c1", SenderID: "peer", Content: "hello", CreatedAt: time.Now()}
	src.mu.Lock()
	src.history = []model.ChatMessage{inbound}
	src.mu.Unlock()

	events.fire(t, realtime.EventNewMessage, inbound)

	require.Eventually(t, func() bool {
		history, _ := cache.Value[[]model.ChatMessage](c.Peek(chat.MessagesKey("c1")))
		return len(history) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConversations_AttachRefetchesOnEveryMessage(t *testing.T) {
	c := cache.New()
	defer c.Close()

	src := &fakeSource{conversations: []model.ConversationSummary{
		{ID: "c1", UpdatedAt: time.Unix(100, 0)},
		{ID: "c2", UpdatedAt: time.Unix(200, 0)},
	}}
	events := &fakeEvents{}
	inbox := chat.NewConversations(c, src, "me", nil)

	unsubscribe := inbox.Subscribe(func([]model.ConversationSummary, cache.Result) {})
	defer unsubscribe()
	detach := inbox.Attach(context.Background(), events)
	defer detach()

	list, res := inbox.List(context.Background())
	require.NoError(t, res.Err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)

	events.fire(t, realtime.EventNewMessage, model.ChatMessage{ConversationID: "c9"})

	require.Eventually(t, func() bool { return src.fetches() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestWindow_OverRealtimeChannel(t *testing.T) {
	srv := testutil.NewSocketServer(t)
	ch := realtime.New(srv.URL(), realtime.WithReconnectInterval(10*time.Millisecond))
	ch.Connect(context.Background())
	defer ch.Close()
	require.Eventually(t, func() bool { return ch.State() == realtime.Connected }, 3*time.Second, 5*time.Millisecond)

	src := &fakeSource{}
	c := cache.New()
	defer c.Close()
	w := chat.NewWindow(c, src, ch, "c1", "me", "peer", nil)
	detach := w.Attach()
	defer detach()

	stored, err := w.Send(context.Background(), "over the wire")
	require.NoError(t, err)

	frame := srv.NextFrame(t, 3*time.Second)
	assert.True(t, strings.HasPrefix(frame, `42["sendMessage",`))
	assert.Contains(t, frame, stored.ClientID)

	srv.Send(t, realtime.EventNewMessage, stored)
	srv.Send(t, realtime.EventNewMessage, model.ChatMessage{ID: "reply", ConversationID: "c1", SenderID: "peer", Content: "received", CreatedAt: time.Now().Add(time.Second)})

	require.Eventually(t, func() bool { return len(w.Messages()) == 2 }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, w.Messages(), 2)
}
