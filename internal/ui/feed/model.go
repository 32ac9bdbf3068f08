package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/keys"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/notify"
	"github.com/nhle/agora/internal/theme"
	"github.com/nhle/agora/internal/ui"
)

// ItemsMsg carries a new version of the notification list, either from a
// load or from a cache subscription.
type ItemsMsg struct {
	Items []model.Notification
	Err   error
}

// OpenLinkMsg asks the parent to navigate to a notification's target.
type OpenLinkMsg struct {
	Link  string
	Route notify.Route
}

// ActionDoneMsg reports the outcome of a mark-read action.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// Model is the notification feed view.
type Model struct {
	feed        *notify.Feed
	keys        *keys.KeyMap
	items       []model.Notification
	selectedIdx int
	loading     bool
	err         error
	width       int
	height      int
}

// New creates a feed view. A nil feed renders the signed-out state.
func New(f *notify.Feed, k *keys.KeyMap, width, height int) Model {
	return Model{
		feed:   f,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetFeed swaps the underlying feed after sign-in or sign-out.
func (m *Model) SetFeed(f *notify.Feed) {
	m.feed = f
	m.items = nil
	m.selectedIdx = 0
	m.err = nil
}

// Load returns a command that queries the feed.
func (m *Model) Load() tea.Cmd {
	f := m.feed
	if f == nil {
		return nil
	}
	m.loading = true
	return func() tea.Msg {
		items, res := f.Items(context.Background())
		return ItemsMsg{Items: items, Err: res.Err}
	}
}

// Update handles messages for the feed view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ItemsMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Items != nil || msg.Err == nil {
			m.items = msg.Items
		}
		m.selectedIdx = ui.Clamp(m.selectedIdx, len(m.items))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.items) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.items)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.items) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.items) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		n, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, tea.Batch(m.open(n), m.markRead(n))

	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.selected()
		if !ok || n.Read {
			return m, nil
		}
		return m, m.markRead(n)

	case key.Matches(msg, m.keys.MarkAllRead):
		if m.feed == nil || notify.UnreadCount(m.items) == 0 {
			return m, nil
		}
		f := m.feed
		return m, func() tea.Msg {
			return ActionDoneMsg{Action: "mark all read", Err: f.MarkAllRead(context.Background())}
		}
	}
	return m, nil
}

func (m Model) selected() (model.Notification, bool) {
	if len(m.items) == 0 {
		return model.Notification{}, false
	}
	return m.items[m.selectedIdx], true
}

func (m Model) open(n model.Notification) tea.Cmd {
	return func() tea.Msg {
		link := notify.Link(n)
		route, err := notify.ParseLink(link)
		if err != nil {
			return ActionDoneMsg{Action: "open", Err: err}
		}
		return OpenLinkMsg{Link: link, Route: route}
	}
}

func (m Model) markRead(n model.Notification) tea.Cmd {
	if m.feed == nil || n.Read {
		return nil
	}
	f := m.feed
	return func() tea.Msg {
		return ActionDoneMsg{Action: "mark read", Err: f.MarkRead(context.Background(), n.ID)}
	}
}

// Unread returns the unread count of the items on screen.
func (m Model) Unread() int {
	return notify.UnreadCount(m.items)
}

// View renders the feed.
func (m Model) View() string {
	var b strings.Builder

	title := "Notifications"
	if unread := m.Unread(); unread > 0 {
		title = fmt.Sprintf("Notifications (%d unread)", unread)
	}
	b.WriteString(theme.TitleStyle.Render(title))
	b.WriteString("\n")

	switch {
	case m.feed == nil:
		b.WriteString(theme.DimmedStyle.Render("Sign in to see your notifications. Press 'L'."))
	case m.loading && len(m.items) == 0:
		b.WriteString(theme.DimmedStyle.Render("Loading..."))
	case m.err != nil && len(m.items) == 0:
		b.WriteString(theme.DimmedStyle.Render("Could not load notifications: " + m.err.Error()))
	case len(m.items) == 0:
		b.WriteString(theme.DimmedStyle.Render("You're all caught up."))
	default:
		for i, n := range m.visible() {
			b.WriteString(m.renderItem(n, i+m.offset() == m.selectedIdx))
			b.WriteString("\n")
		}
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(b.String())
}

func (m Model) renderItem(n model.Notification, selected bool) string {
	marker := "  "
	if !n.Read {
		marker = theme.UnreadMarkerStyle.Render("● ")
	}

	label := theme.NotificationStyle(n.Type).Render(string(n.Type))

	var text strings.Builder
	for _, seg := range notify.Segments(n.Message) {
		if seg.Bold {
			text.WriteString(lipgloss.NewStyle().Bold(true).Render(seg.Text))
		} else {
			text.WriteString(seg.Text)
		}
	}

	line := marker + label + " " + text.String() + " " + theme.DimmedStyle.Render(ui.RelativeTime(n.CreatedAt))
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// visible returns the window of items that fits the panel, keeping the
// selection on screen.
func (m Model) visible() []model.Notification {
	rows := m.rows()
	start := m.offset()
	end := min(start+rows, len(m.items))
	return m.items[start:end]
}

func (m Model) offset() int {
	rows := m.rows()
	if m.selectedIdx < rows {
		return 0
	}
	return m.selectedIdx - rows + 1
}

func (m Model) rows() int {
	return max(m.height-8, 1)
}

// SetSize updates the feed dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Subscribe bridges cache updates for the feed into the program.
func Subscribe(f *notify.Feed, bridge *ui.Bridge) (unsubscribe func()) {
	return f.Subscribe(func(items []model.Notification, res cache.Result) {
		bridge.Send(ItemsMsg{Items: items, Err: res.Err})
	})
}
