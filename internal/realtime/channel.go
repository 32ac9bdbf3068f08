// Package realtime maintains the single persistent socket connection to the
// backend: Engine.IO v4 / Socket.IO v4 over a websocket, with presence
// announcement, fire-and-forget emits and per-event subscriptions.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nhle/agora/internal/observe"
)

// Event names exchanged with the backend.
const (
	EventAddUser         = "addUser"
	EventSendMessage     = "sendMessage"
	EventNewMessage      = "new_message"
	EventNewNotification = "new_notification"
)

const (
	defaultReconnectInterval = 2 * time.Second
	defaultPingInterval      = 25 * time.Second
	defaultPingTimeout       = 20 * time.Second
	writeTimeout             = 10 * time.Second
)

var (
	// ErrNotConnected is returned by Emit while the channel is not connected.
	// Nothing is queued.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrConnectRefused is reported when the server rejects the namespace
	// connect request.
	ErrConnectRefused = errors.New("realtime: connect refused")
)

// Handler receives the first argument of an inbound event as raw JSON.
// Handlers run on the channel's read goroutine and must not block.
type Handler func(payload json.RawMessage)

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithReconnectInterval sets the minimum spacing between connection attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Channel) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithAuth supplies the payload sent with every namespace connect request,
// evaluated per attempt so a refreshed token is picked up.
func WithAuth(fn func() any) Option {
	return func(c *Channel) { c.auth = fn }
}

// Channel is a process-wide realtime connection. Create it once and share
// it; only the owner calls Close.
type Channel struct {
	url     string
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	logger  *zap.Logger
	auth    func() any

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	userID    string
	announced string
	handlers  map[string]*observe.Registry[json.RawMessage]
	cancel    context.CancelFunc
	done      chan struct{}

	// writeMu serializes frames so emits keep their order on the wire.
	writeMu sync.Mutex

	states observe.Registry[State]
}

// New creates a disconnected Channel for the given websocket URL.
func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url:      url,
		dialer:   websocket.DefaultDialer,
		limiter:  rate.NewLimiter(rate.Every(defaultReconnectInterval), 1),
		logger:   zap.NewNop(),
		handlers: make(map[string]*observe.Registry[json.RawMessage]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the connection loop and returns immediately. The loop
// reconnects after every loss until ctx is cancelled or Close is called.
// Calling Connect on a running channel is a no-op.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.run(loopCtx, done)
}

// Close tears the connection down and waits for the loop to exit. The
// channel can be connected again afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.userID = ""
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnState registers fn for every state transition.
func (c *Channel) OnState(fn func(State)) (unsubscribe func()) {
	return c.states.Add(fn)
}

// On registers handler for an inbound event. Any number of handlers may
// subscribe to the same event independently.
func (c *Channel) On(event string, handler Handler) (unsubscribe func()) {
	c.mu.Lock()
	reg, ok := c.handlers[event]
	if !ok {
		reg = &observe.Registry[json.RawMessage]{}
		c.handlers[event] = reg
	}
	c.mu.Unlock()

	return reg.Add(func(payload json.RawMessage) { handler(payload) })
}

// Identify announces the user's presence. It is a no-op when this user has
// already been announced on the current connection; while disconnected the
// announcement is deferred until the next connect. Every new connection
// re-announces the last identified user.
func (c *Channel) Identify(userID string) error {
	c.mu.Lock()
	c.userID = userID
	conn := c.conn
	if userID == "" || c.announced == userID || c.state != Connected || conn == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.announce(conn, userID)
}

// Emit sends an event without waiting for acknowledgement. While the
// channel is not connected it returns ErrNotConnected and drops the event.
func (c *Channel) Emit(event string, payload any) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if conn == nil || state != Connected {
		return ErrNotConnected
	}
	return c.write(conn, frame)
}

func (c *Channel) announce(conn *websocket.Conn, userID string) error {
	frame, err := encodeEvent(EventAddUser, userID)
	if err != nil {
		return err
	}
	if err := c.write(conn, frame); err != nil {
		return fmt.Errorf("announcing %s: %w", userID, err)
	}

	c.mu.Lock()
	if c.conn == conn {
		c.announced = userID
	}
	c.mu.Unlock()
	return nil
}

func (c *Channel) write(conn *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed {
		c.states.Notify(s)
	}
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.setState(Disconnected)

	c.setState(Connecting)
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("realtime connection lost",
			zap.String("url", c.url),
			zap.Error(err),
		)
		c.setState(Reconnecting)
	}
}

// session runs one connection from dial to loss.
func (c *Channel) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, http.Header{})
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	hs, err := c.handshake(conn)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.announced = ""
	userID := c.userID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.announced = ""
		c.mu.Unlock()
	}()

	c.setState(Connected)
	c.logger.Info("realtime connected", zap.String("sid", hs.SID))

	if userID != "" {
		if err := c.announce(conn, userID); err != nil {
			return err
		}
	}

	return c.readLoop(conn, hs)
}

// handshake reads the Engine.IO open packet and joins the default namespace.
func (c *Channel) handshake(conn *websocket.Conn) (handshake, error) {
	hs := handshake{
		PingInterval: int(defaultPingInterval / time.Millisecond),
		PingTimeout:  int(defaultPingTimeout / time.Millisecond),
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultPingTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hs, fmt.Errorf("reading open packet: %w", err)
	}
	if len(msg) == 0 || msg[0] != engineOpen {
		return hs, fmt.Errorf("unexpected first packet %q", msg)
	}
	if err := json.Unmarshal(msg[1:], &hs); err != nil {
		return hs, fmt.Errorf("decoding open packet: %w", err)
	}

	var auth any
	if c.auth != nil {
		auth = c.auth()
	}
	frame, err := encodeConnect(auth)
	if err != nil {
		return hs, err
	}
	if err := c.write(conn, frame); err != nil {
		return hs, fmt.Errorf("joining namespace: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return hs, fmt.Errorf("awaiting connect ack: %w", err)
		}
		if len(msg) == 0 {
			continue
		}
		switch msg[0] {
		case enginePing:
			if err := c.write(conn, []byte{enginePong}); err != nil {
				return hs, err
			}
		case engineMessage:
			p, err := decodeSocket(msg[1:])
			if err != nil {
				return hs, err
			}
			switch p.kind {
			case socketConnect:
				return hs, nil
			case socketConnectError:
				return hs, fmt.Errorf("%w: %s", ErrConnectRefused, p.data)
			}
		case engineClose:
			return hs, errors.New("closed during handshake")
		}
	}
}

func (c *Channel) readLoop(conn *websocket.Conn, hs handshake) error {
	deadline := time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond

	for {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading: %w", err)
		}
		if len(msg) == 0 {
			continue
		}

		switch msg[0] {
		case enginePing:
			if err := c.write(conn, []byte{enginePong}); err != nil {
				return fmt.Errorf("answering ping: %w", err)
			}
		case engineClose:
			return errors.New("server closed the connection")
		case engineMessage:
			if err := c.handleSocket(msg[1:]); err != nil {
				return err
			}
		case engineNoop:
		default:
			c.logger.Debug("ignoring engine packet", zap.ByteString("packet", msg))
		}
	}
}

func (c *Channel) handleSocket(b []byte) error {
	p, err := decodeSocket(b)
	if err != nil {
		return err
	}

	switch p.kind {
	case socketEvent:
		if p.namespace != "/" {
			return nil
		}
		event, payload, err := decodeEvent(p.data)
		if err != nil {
			c.logger.Warn("dropping malformed event", zap.Error(err))
			return nil
		}
		c.dispatch(event, payload)
	case socketDisconnect:
		return errors.New("server disconnected the namespace")
	case socketAck, socketConnect:
	}
	return nil
}

func (c *Channel) dispatch(event string, payload json.RawMessage) {
	c.mu.Lock()
	reg := c.handlers[event]
	c.mu.Unlock()

	if reg == nil {
		return
	}
	reg.Notify(payload)
}
