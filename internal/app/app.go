package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/chatbot"
	"github.com/nhle/agora/internal/contact"
	"github.com/nhle/agora/internal/credential"
	"github.com/nhle/agora/internal/keys"
	"github.com/nhle/agora/internal/media"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/notify"
	"github.com/nhle/agora/internal/realtime"
	"github.com/nhle/agora/internal/session"
	appsync "github.com/nhle/agora/internal/sync"
	"github.com/nhle/agora/internal/theme"
	"github.com/nhle/agora/internal/ui"
	chatview "github.com/nhle/agora/internal/ui/chat"
	botview "github.com/nhle/agora/internal/ui/chatbot"
	"github.com/nhle/agora/internal/ui/command"
	contactview "github.com/nhle/agora/internal/ui/contact"
	"github.com/nhle/agora/internal/ui/dashboard"
	feedview "github.com/nhle/agora/internal/ui/feed"
	helpview "github.com/nhle/agora/internal/ui/help"
	"github.com/nhle/agora/internal/ui/inbox"
	"github.com/nhle/agora/internal/ui/library"
	"github.com/nhle/agora/internal/ui/login"
)

// connStateMsg carries a realtime connection state change.
type connStateMsg struct {
	state realtime.State
}

// themeChangedMsg is sent whenever the theme changes, from this process or
// another one.
type themeChangedMsg struct {
	dark bool
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewFeed ViewState = iota
	ViewInbox
	ViewChat
	ViewLibrary
	ViewDashboard
	ViewChatbot
	ViewContact
	ViewLogin
	ViewHelp
	ViewCommand
)

// Deps are the long-lived services the application runs on.
type Deps struct {
	Config  *model.AppConfig
	Logger  *zap.Logger
	Cache   *cache.Cache
	Client  *api.Client
	Vault   *credential.Vault
	Channel *realtime.Channel
	Theme   *theme.Store
	Contact *contact.Service
	Bot     *chatbot.Bot
	Media   *media.Resolver
	Session model.Session
	// History keeps last-sync times across runs. Optional.
	History appsync.History
}

// Model is the root Bubble Tea model that manages view routing, layout and
// the signed-in user's subscriptions.
type Model struct {
	deps   Deps
	logger *zap.Logger
	bridge *ui.Bridge

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	feedView      feedview.Model
	inboxView     inbox.Model
	chatView      chatview.Model
	libraryView   library.Model
	dashboardView dashboard.Model
	botView       botview.Model
	contactView   contactview.Model
	loginView     login.Model
	helpView      helpview.Model
	commandView   command.Model

	session   model.Session
	wiring    *wiring
	conn      realtime.State
	dark      bool
	unsub     []func()
	initCmd   tea.Cmd
	ready     bool
	notice    string
	errorText string
}

// New creates the root application model and attaches the session found
// at startup.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config == nil {
		deps.Config = &model.AppConfig{}
	}

	k := keys.DefaultKeyMap()
	bridge := ui.NewBridge(128)

	m := Model{
		deps:          deps,
		logger:        deps.Logger,
		bridge:        bridge,
		currentView:   ViewFeed,
		keys:          k,
		feedView:      feedview.New(nil, k, 80, 24),
		inboxView:     inbox.New(nil, k, 80, 24),
		chatView:      chatview.New(80, 24),
		libraryView:   library.New(deps.Cache, deps.Client, deps.Media, k, 80, 24),
		dashboardView: dashboard.New(deps.Cache, deps.Client, k, model.Session{}, 80, 24),
		botView:       botview.New(deps.Bot, 80, 24),
		contactView:   contactview.New(deps.Contact, 80, 24),
		loginView:     login.New(deps.Client, deps.Vault, 80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
	}

	if deps.Theme != nil {
		m.dark = deps.Theme.IsDark()
		m.unsub = append(m.unsub, deps.Theme.Subscribe(func(t model.Theme) {
			bridge.Send(themeChangedMsg{dark: t.IsDark()})
		}))
	}
	if deps.Channel != nil {
		m.conn = deps.Channel.State()
		m.unsub = append(m.unsub, deps.Channel.OnState(func(s realtime.State) {
			bridge.Send(connStateMsg{state: s})
		}))
	}
	m.helpView.SetDark(m.dark)

	m.initCmd = m.startSession(deps.Session)
	if !deps.Session.Authenticated() {
		m.currentView = ViewLogin
		m.initCmd = tea.Batch(m.initCmd, m.loginView.Start("Welcome. Sign in to join the conversation."))
	}
	return m
}

// Init returns the startup commands: loading the signed-in user's data and
// listening on the bridge.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.initCmd, m.bridge.Wait())
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.feedView.SetSize(w, h)
		m.inboxView.SetSize(w, h)
		m.chatView.SetSize(w, h)
		m.libraryView.SetSize(w, h)
		m.dashboardView.SetSize(w, h)
		m.botView.SetSize(w, h)
		m.contactView.SetSize(w, h)
		m.loginView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case ui.Bridged:
		next, cmd := m.Update(msg.Msg)
		return next, tea.Batch(cmd, m.bridge.Wait())

	case themeChangedMsg:
		m.dark = msg.dark
		m.helpView.SetDark(msg.dark)
		return m, nil

	case connStateMsg:
		m.conn = msg.state
		return m, nil

	case feedview.ItemsMsg:
		var cmd tea.Cmd
		m.feedView, cmd = m.feedView.Update(msg)
		return m, tea.Batch(cmd, m.checkAuth(msg.Err))

	case inbox.ConversationsMsg:
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		return m, tea.Batch(cmd, m.checkAuth(msg.Err))

	case chatview.MessagesMsg:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, tea.Batch(cmd, m.checkAuth(msg.Err))

	// Command results.

	case appsync.SyncResultMsg:
		if m.wiring == nil || m.wiring.poller == nil {
			return m, nil
		}
		wait := m.wiring.poller.WaitForNextResult()
		if msg.AuthError != nil {
			return m, tea.Batch(wait, m.requireLogin(msg.AuthError.Message))
		}
		return m, wait

	case feedview.OpenLinkMsg:
		switch msg.Route.Kind {
		case notify.RoutePost:
			m.previousView = m.currentView
			m.currentView = ViewLibrary
			return m, m.libraryView.ShowPost(msg.Route.ID)
		default:
			m.notice = "Profile " + msg.Route.ID + " (" + msg.Link + ")"
			return m, nil
		}

	case feedview.ActionDoneMsg:
		return m, m.report(msg.Action, msg.Err)

	case inbox.OpenConversationMsg:
		if err := session.Guard(m.session, session.SendMessages); err != nil {
			return m, m.report("open conversation", err)
		}
		m.previousView = ViewInbox
		m.currentView = ViewChat
		return m, m.openConversation(msg.Conversation)

	case chatview.SentMsg:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, tea.Batch(cmd, m.report("send", msg.Err))

	case chatview.CloseMsg:
		if m.wiring != nil {
			m.wiring.closeWindow()
		}
		m.currentView = ViewInbox
		return m, m.inboxView.Load()

	case library.LoadedMsg:
		var cmd tea.Cmd
		m.libraryView, cmd = m.libraryView.Update(msg)
		return m, tea.Batch(cmd, m.checkAuth(msg.Err))

	case dashboard.LoadedMsg:
		var cmd tea.Cmd
		m.dashboardView, cmd = m.dashboardView.Update(msg)
		return m, tea.Batch(cmd, m.checkAuth(msg.Err))

	case dashboard.ActionDoneMsg:
		var cmd tea.Cmd
		m.dashboardView, cmd = m.dashboardView.Update(msg)
		return m, tea.Batch(cmd, m.report(msg.Action, msg.Err))

	case botview.PanelCloseMsg:
		m.botView.Reset()
		m.currentView = m.fallbackView()
		return m, nil

	case botview.ResponseChunkMsg:
		var cmd tea.Cmd
		m.botView, cmd = m.botView.Update(msg)
		return m, cmd

	case contactview.CloseMsg:
		m.currentView = m.fallbackView()
		return m, nil

	case contactview.SentMsg:
		var cmd tea.Cmd
		m.contactView, cmd = m.contactView.Update(msg)
		return m, tea.Batch(cmd, m.report(strings.ToLower(msg.Action), msg.Err))

	case login.LoggedInMsg:
		m.errorText = ""
		m.notice = "Signed in as " + firstNonEmpty(msg.User.Name, msg.Session.Email, msg.Session.UserID)
		m.currentView = ViewFeed
		return m, m.startSession(msg.Session)

	case login.CancelMsg:
		m.currentView = m.fallbackView()
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.capturesInput() {
			if msg.String() == "esc" && m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			break
		}
		if handled, next, cmd := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work from every list-style view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (bool, Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return true, m, m.quit()

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return true, m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return true, m, nil

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return true, m, m.commandView.Focus()

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return true, m, nil
		}
		if m.currentView != ViewFeed {
			m.currentView = ViewFeed
			return true, m, nil
		}
		return false, m, nil

	case key.Matches(msg, m.keys.ToggleTheme):
		m.toggleTheme()
		return true, m, nil

	case key.Matches(msg, m.keys.Refresh):
		return true, m, m.refresh()

	case key.Matches(msg, m.keys.Login):
		return true, m, m.toggleLogin()
	}

	if cmd, ok := m.switchView(msg); ok {
		return true, m, cmd
	}
	return false, m, nil
}

// switchView handles the keys that jump straight to a view.
func (m *Model) switchView(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Feed):
		return m.show(ViewFeed), true
	case key.Matches(msg, m.keys.Inbox):
		return m.show(ViewInbox), true
	case key.Matches(msg, m.keys.Library):
		return m.show(ViewLibrary), true
	case key.Matches(msg, m.keys.Dashboard):
		return m.show(ViewDashboard), true
	case key.Matches(msg, m.keys.Chatbot):
		return m.show(ViewChatbot), true
	case key.Matches(msg, m.keys.Contact):
		return m.show(ViewContact), true
	}
	return nil, false
}

// show switches to v and returns the command that loads it.
func (m *Model) show(v ViewState) tea.Cmd {
	m.previousView = m.currentView
	m.currentView = v
	m.notice = ""

	switch v {
	case ViewFeed:
		return m.feedView.Load()
	case ViewInbox:
		return m.inboxView.Load()
	case ViewLibrary:
		return m.libraryView.Load()
	case ViewDashboard:
		return m.dashboardView.Load()
	case ViewChatbot:
		return m.botView.Focus()
	case ViewContact:
		return m.contactView.Start()
	}
	return nil
}

// capturesInput reports whether the active view owns every key press.
func (m Model) capturesInput() bool {
	switch m.currentView {
	case ViewChat, ViewChatbot, ViewContact, ViewLogin, ViewCommand:
		return true
	case ViewDashboard:
		return m.dashboardView.InForm()
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewFeed:
		m.feedView, cmd = m.feedView.Update(msg)
	case ViewInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewChat:
		m.chatView, cmd = m.chatView.Update(msg)
	case ViewLibrary:
		m.libraryView, cmd = m.libraryView.Update(msg)
	case ViewDashboard:
		m.dashboardView, cmd = m.dashboardView.Update(msg)
	case ViewChatbot:
		m.botView, cmd = m.botView.Update(msg)
	case ViewContact:
		m.contactView, cmd = m.contactView.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.headerStatus())
	content := m.renderContent()

	var bar string
	if m.errorText != "" {
		bar = m.layout.RenderErrorBar(m.errorText)
	} else {
		bar = m.layout.RenderStatusBar(m.keyHints())
	}

	return m.layout.RenderWithFrame(header, content, bar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewFeed:
		return m.feedView.View()
	case ViewInbox:
		return m.inboxView.View()
	case ViewChat:
		return m.chatView.View()
	case ViewLibrary:
		return m.libraryView.View()
	case ViewDashboard:
		return m.dashboardView.View()
	case ViewChatbot:
		return m.botView.View()
	case ViewContact:
		return m.contactView.View()
	case ViewLogin:
		return m.loginView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) headerTitle() string {
	title := "Agora"
	if unread := m.feedView.Unread(); unread > 0 {
		title = fmt.Sprintf("Agora [%d new]", unread)
	}
	return title
}

// headerStatus describes the connection and refresh state.
func (m Model) headerStatus() string {
	parts := []string{}

	if m.session.Authenticated() {
		label := m.conn.String()
		parts = append(parts, theme.ConnectionStyle(m.conn == realtime.Connected).Render("● "+label))
	} else {
		parts = append(parts, "signed out")
	}

	if m.wiring != nil && m.wiring.poller != nil {
		for _, s := range m.wiring.poller.GetStatuses() {
			switch s.State {
			case appsync.SyncRunning:
				parts = append(parts, "refreshing "+s.Name)
			case appsync.SyncError:
				parts = append(parts, s.Name+" unreachable")
			}
		}
	}

	if m.dark {
		parts = append(parts, "dark")
	} else {
		parts = append(parts, "light")
	}
	return strings.Join(parts, " | ")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.notice != "" {
		return m.notice
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewChat:
		return "enter send | pgup/pgdown scroll | esc back"
	case ViewChatbot:
		return "enter send | esc close"
	case ViewContact, ViewLogin:
		return "enter submit | esc cancel"
	case ViewInbox:
		return "enter open | r refresh | 1 feed | esc back"
	case ViewLibrary:
		return "tab switch | j/k move | esc back"
	case ViewDashboard:
		return "p approve | d reject | n apply | s settings | esc back"
	default:
		return "q quit | ? help | enter open | m mark all read | 2 inbox | 3 library | 4 dashboard | T theme"
	}
}

// report turns an action outcome into status bar text. An unauthorized
// response sends the user to the sign-in form.
func (m *Model) report(action string, err error) tea.Cmd {
	if err == nil {
		m.errorText = ""
		if action != "" {
			m.notice = "Done: " + action
		}
		return nil
	}

	if api.IsUnauthorized(err) {
		return m.requireLogin("Your session has expired. Sign in again.")
	}

	m.logger.Warn("action failed", zap.String("action", action), zap.Error(err))

	var statusErr *api.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.RetryAfter > 0:
		m.errorText = fmt.Sprintf("%s failed: %s (try again in %s)", action, statusErr.Message, statusErr.RetryAfter)
	case errors.Is(err, session.ErrForbidden):
		m.errorText = "Your role does not allow " + action
	default:
		m.errorText = fmt.Sprintf("%s failed: %v", action, err)
	}
	return nil
}

// checkAuth watches load errors for an expired session.
func (m *Model) checkAuth(err error) tea.Cmd {
	if err != nil && api.IsUnauthorized(err) {
		return m.requireLogin("Your session has expired. Sign in again.")
	}
	return nil
}

func (m *Model) requireLogin(notice string) tea.Cmd {
	if m.currentView == ViewLogin {
		return nil
	}
	m.errorText = ""
	m.previousView = ViewFeed
	m.currentView = ViewLogin
	return m.loginView.Start(notice)
}

func (m *Model) toggleLogin() tea.Cmd {
	if m.session.Authenticated() {
		cmd := m.endSession()
		m.currentView = ViewLogin
		m.notice = "Signed out"
		return tea.Batch(cmd, m.loginView.Start(""))
	}
	m.previousView = m.currentView
	m.currentView = ViewLogin
	return m.loginView.Start("")
}

func (m *Model) toggleTheme() {
	if m.deps.Theme == nil {
		return
	}
	t := m.deps.Theme.Toggle()
	m.dark = t.IsDark()
	m.helpView.SetDark(m.dark)
}

func (m *Model) refresh() tea.Cmd {
	if m.wiring != nil && m.wiring.poller != nil {
		m.wiring.poller.RefreshAll()
	}

	switch m.currentView {
	case ViewLibrary:
		c := m.deps.Cache
		return tea.Sequence(func() tea.Msg {
			c.Invalidate(context.Background(), cache.Key{"products"})
			c.Invalidate(context.Background(), cache.Key{"posts"})
			return nil
		}, m.libraryView.Load())
	case ViewDashboard:
		c := m.deps.Cache
		return tea.Sequence(func() tea.Msg {
			c.Invalidate(context.Background(), cache.Key{"dashboard"})
			c.Invalidate(context.Background(), dashboard.ModerationKey)
			c.Invalidate(context.Background(), cache.Key{"settings"})
			return nil
		}, m.dashboardView.Load())
	}
	return nil
}

// fallbackView is where closing an overlay returns to.
func (m Model) fallbackView() ViewState {
	switch m.previousView {
	case ViewLogin, ViewHelp, ViewCommand, ViewChatbot, ViewContact:
		return ViewFeed
	}
	return m.previousView
}

// quit detaches every subscription and stops the program. The realtime
// channel and cache are closed by the caller once the program exits.
func (m *Model) quit() tea.Cmd {
	m.wiring.teardown()
	m.wiring = nil
	for _, fn := range m.unsub {
		fn()
	}
	m.unsub = nil
	return tea.Quit
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "feed", "notifications":
		return m.show(ViewFeed)
	case "inbox", "messages":
		return m.show(ViewInbox)
	case "library", "posts":
		return m.show(ViewLibrary)
	case "dashboard":
		return m.show(ViewDashboard)
	case "guide", "chatbot":
		return m.show(ViewChatbot)
	case "contact", "newsletter":
		return m.show(ViewContact)
	case "refresh", "sync":
		return m.refresh()
	case "mark all read":
		if m.wiring == nil {
			return nil
		}
		f := m.wiring.feed
		return func() tea.Msg {
			return feedview.ActionDoneMsg{Action: "mark all read", Err: f.MarkAllRead(context.Background())}
		}
	case "theme", "toggle theme":
		m.toggleTheme()
		return nil
	case "login", "sign in":
		if m.session.Authenticated() {
			return nil
		}
		return m.toggleLogin()
	case "logout", "sign out":
		if !m.session.Authenticated() {
			return nil
		}
		return m.toggleLogin()
	case "quit", "q":
		return m.quit()
	default:
		m.errorText = "unknown command: " + cmd
		return nil
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
