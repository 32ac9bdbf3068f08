package realtime_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/realtime"
	"github.com/nhle/agora/tests/testutil"
)

const waitFor = 3 * time.Second

func connectedChannel(t *testing.T, srv *testutil.SocketServer, opts ...realtime.Option) *realtime.Channel {
	t.Helper()

	opts = append([]realtime.Option{realtime.WithReconnectInterval(10 * time.Millisecond)}, opts...)
	ch := realtime.New(srv.URL(), opts...)
	ch.Connect(context.Background())
	t.Cleanup(ch.Close)

	require.Eventually(t, func() bool {
		return ch.State() == realtime.Connected
	}, waitFor, 5*time.Millisecond)
	return ch
}

func TestChannel_EmitWhileDisconnected(t *testing.T) {
	ch := realtime.New("ws://127.0.0.1:1/socket.io/")

	err := ch.Emit(realtime.EventSendMessage, map[string]string{"content": "hi"})
	assert.ErrorIs(t, err, realtime.ErrNotConnected)
	assert.Equal(t, realtime.Disconnected, ch.State())
}

func TestChannel_ReceivesEvents(t *testing.T) {
	srv := testutil.NewSocketServer(t)
	ch := connectedChannel(t, srv)

	got := make(chan json.RawMessage, 1)
	unsubscribe := ch.On(realtime.EventNewNotification, func(p json.RawMessage) { got <- p })
	defer unsubscribe()

	srv.Send(t, realtime.EventNewNotification, map[string]string{"_id": "n1"})

	select {
	case p := <-got:
		assert.JSONEq(t, `{"_id":"n1"}`, string(p))
	case <-time.After(waitFor):
		t.Fatal("event not delivered")
	}
}

func TestChannel_IndependentSubscribers(t *testing.T) {
	srv := testutil.NewSocketServer(t)
	ch := connectedChannel(t, srv)

	var mu sync.Mutex
	var first, second int
	done := make(chan struct{}, 4)

	unsubFirst := ch.On(realtime.EventNewMessage, func(json.RawMessage) {
		mu.Lock()
		first++
		mu.Unlock()
		done <- struct{}{}
	})
	unsubSecond := ch.On(realtime.EventNewMessage, func(json.RawMessage) {
		mu.Lock()
		second++
		mu.Unlock()
		done <- struct{}{}
	})
	defer unsubSecond()

	srv.Send(t, realtime.EventNewMessage, map[string]string{"content": "one"})
	<-done
	<-done

	unsubFirst()
	srv.Send(t, realtime.EventNewMessage, map[string]string{"content": "two"})
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestChannel_EmitPreservesOrder(t *testing.T) {
	srv := testutil.NewSocketServer(t)
	ch := connectedChannel(t, srv)

	for i := range 20 {
		require.NoError(t, ch.Emit(realtime.EventSendMessage, i))
	}
	for i := range 20 {
		assert.Equal(t, fmt.Sprintf(`42["sendMessage",%d]`, i), srv.NextFrame(t, waitFor))
	}
}

func TestChannel_IdentifyIsIdempotentAndReannounced(t *testing.T) {
	srv := testutil.NewSocketServer(t)

	ch := realtime.New(srv.URL(), realtime.WithReconnectInterval(10*time.Millisecond))
	require.NoError(t, ch.Identify("u1"))
	ch.Connect(context.Background())
	defer ch.Close()

	assert.Equal(t, `42["addUser","u1"]`, srv.NextFrame(t, waitFor))

	require.NoError(t, ch.Identify("u1"))
	srv.NoFrame(t, 100*time.Millisecond)

	srv.DropAll()

	assert.Equal(t, `42["addUser","u1"]`, srv.NextFrame(t, waitFor))
	assert.Equal(t, 2, srv.Connects())
	assert.Equal(t, realtime.Connected, ch.State())
}

func TestChannel_StateTransitions(t *testing.T) {
	srv := testutil.NewSocketServer(t)

	ch := realtime.New(srv.URL(), realtime.WithReconnectInterval(10*time.Millisecond))

	var mu sync.Mutex
	var states []realtime.State
	unsubscribe := ch.OnState(func(s realtime.State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	defer unsubscribe()

	ch.Connect(context.Background())
	require.Eventually(t, func() bool { return ch.State() == realtime.Connected }, waitFor, 5*time.Millisecond)

	srv.DropAll()
	require.Eventually(t, func() bool { return srv.Connects() == 2 }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return ch.State() == realtime.Connected }, waitFor, 5*time.Millisecond)

	ch.Close()
	assert.Equal(t, realtime.Disconnected, ch.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []realtime.State{
		realtime.Connecting,
		realtime.Connected,
		realtime.Reconnecting,
		realtime.Connected,
		realtime.Disconnected,
	}, states)
}

func TestChannel_ConnectRefused(t *testing.T) {
	srv := testutil.NewSocketServer(t)
	srv.RejectConnect(true)

	ch := realtime.New(srv.URL(), realtime.WithReconnectInterval(10*time.Millisecond))
	ch.Connect(context.Background())

	require.Eventually(t, func() bool { return ch.State() == realtime.Reconnecting }, waitFor, 5*time.Millisecond)
	assert.ErrorIs(t, ch.Emit(realtime.EventSendMessage, "x"), realtime.ErrNotConnected)

	ch.Close()
	assert.Equal(t, realtime.Disconnected, ch.State())
	assert.Equal(t, 0, srv.Connects())
}

func TestChannel_AuthPayloadSentOnConnect(t *testing.T) {
	srv := testutil.NewSocketServer(t)

	var calls atomic.Int32
	ch := connectedChannel(t, srv, realtime.WithAuth(func() any {
		calls.Add(1)
		return map[string]string{"token": "abc"}
	}))

	assert.Equal(t, realtime.Connected, ch.State())
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}
