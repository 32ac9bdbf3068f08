package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/agora/internal/chat"
	"github.com/nhle/agora/internal/credential"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/notify"
	appsync "github.com/nhle/agora/internal/sync"
	chatview "github.com/nhle/agora/internal/ui/chat"
	feedview "github.com/nhle/agora/internal/ui/feed"
	"github.com/nhle/agora/internal/ui/inbox"
)

// wiring holds everything attached for the signed-in user. It is shared by
// pointer between copies of the root model and torn down on sign-out.
type wiring struct {
	ctx    context.Context
	cancel context.CancelFunc

	feed          *notify.Feed
	conversations *chat.Conversations
	poller        *appsync.Poller

	detach []func()

	// window is the open chat window, if any, with its own detach funcs.
	window       *chat.Window
	windowDetach []func()
}

func (w *wiring) closeWindow() {
	if w == nil {
		return
	}
	for _, fn := range w.windowDetach {
		fn()
	}
	w.windowDetach = nil
	w.window = nil
}

func (w *wiring) teardown() {
	if w == nil {
		return
	}
	w.closeWindow()
	for _, fn := range w.detach {
		fn()
	}
	w.detach = nil
	if w.poller != nil {
		w.poller.Stop()
	}
	w.cancel()
}

// startSession attaches the feed and inbox for s to the cache, the
// realtime channel and the background refresher, and returns the commands
// that load them.
func (m *Model) startSession(s model.Session) tea.Cmd {
	m.wiring.teardown()
	if m.deps.Channel != nil {
		m.deps.Channel.Close()
	}
	m.session = s
	m.dashboardView.SetSession(s)

	if !s.Authenticated() {
		m.wiring = nil
		m.feedView.SetFeed(nil)
		m.inboxView.SetConversations(nil)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &wiring{
		ctx:           ctx,
		cancel:        cancel,
		feed:          notify.NewFeed(m.deps.Cache, m.deps.Client, s.UserID, m.logger),
		conversations: chat.NewConversations(m.deps.Cache, m.deps.Client, s.UserID, m.logger),
	}

	w.detach = append(w.detach,
		feedview.Subscribe(w.feed, m.bridge),
		inbox.Subscribe(w.conversations, m.bridge),
	)
	if m.deps.Channel != nil {
		w.detach = append(w.detach,
			w.feed.Attach(ctx, m.deps.Channel),
			w.conversations.Attach(ctx, m.deps.Channel),
		)
		// The user must be known before the first connection comes up so
		// the connect handshake announces it.
		if err := m.deps.Channel.Identify(s.UserID); err != nil {
			m.logger.Warn("announcing presence failed", zap.Error(err))
		}
		m.deps.Channel.Connect(ctx)
	}

	interval := time.Duration(m.deps.Config.Cache.PollIntervalSec) * time.Second
	pollOpts := []appsync.Option{appsync.WithLogger(m.logger)}
	if m.deps.History != nil {
		pollOpts = append(pollOpts, appsync.WithHistory(m.deps.History))
	}
	w.poller = appsync.New(m.deps.Cache, pollOpts...)
	w.poller.Register(appsync.Target{Name: "notifications", Key: w.feed.Key(), Interval: interval})
	w.poller.Register(appsync.Target{Name: "messages", Key: w.conversations.Key(), Interval: interval})

	m.wiring = w
	m.feedView.SetFeed(w.feed)
	m.inboxView.SetConversations(w.conversations)

	m.logger.Info("session started", zap.String("user", s.UserID), zap.Any("roles", s.Roles))

	return tea.Batch(
		m.feedView.Load(),
		m.inboxView.Load(),
		w.poller.Start(),
	)
}

// endSession signs the user out: the token is forgotten, cached data
// dropped and the realtime connection closed.
func (m *Model) endSession() tea.Cmd {
	m.wiring.teardown()
	m.wiring = nil

	if m.deps.Vault != nil {
		if err := m.deps.Vault.Delete(credential.AccessTokenKey); err != nil {
			m.logger.Warn("forgetting access token failed", zap.Error(err))
		}
	}
	if err := m.deps.Cache.Reset(context.Background()); err != nil {
		m.logger.Warn("clearing cache failed", zap.Error(err))
	}

	m.logger.Info("session ended", zap.String("user", m.session.UserID))
	return m.startSession(model.Session{})
}

// openConversation opens a chat window on conv and attaches it.
func (m *Model) openConversation(conv model.ConversationSummary) tea.Cmd {
	if m.wiring == nil || m.deps.Channel == nil {
		return nil
	}
	m.wiring.closeWindow()

	win := chat.NewWindow(
		m.deps.Cache,
		m.deps.Client,
		m.deps.Channel,
		conv.ID,
		m.session.UserID,
		conv.OtherParticipant.ID,
		m.logger,
	)
	m.wiring.window = win
	m.wiring.windowDetach = []func(){
		chatview.Subscribe(win, m.bridge),
		win.Attach(),
	}

	name := conv.OtherParticipant.Name
	if name == "" {
		name = conv.OtherParticipant.ID
	}
	return m.chatView.Open(win, m.session.UserID, name)
}
