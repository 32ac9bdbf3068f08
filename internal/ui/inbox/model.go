package inbox

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/chat"
	"github.com/nhle/agora/internal/keys"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/theme"
	"github.com/nhle/agora/internal/ui"
)

// ConversationsMsg carries a new version of the conversation list.
type ConversationsMsg struct {
	Items []model.ConversationSummary
	Err   error
}

// OpenConversationMsg asks the parent to open a chat window.
type OpenConversationMsg struct {
	Conversation model.ConversationSummary
}

// Model is the direct-message inbox view.
type Model struct {
	conversations *chat.Conversations
	keys          *keys.KeyMap
	items         []model.ConversationSummary
	selectedIdx   int
	loading       bool
	err           error
	width         int
	height        int
}

// New creates an inbox view. A nil list renders the signed-out state.
func New(c *chat.Conversations, k *keys.KeyMap, width, height int) Model {
	return Model{conversations: c, keys: k, width: width, height: height}
}

// SetConversations swaps the underlying list after sign-in or sign-out.
func (m *Model) SetConversations(c *chat.Conversations) {
	m.conversations = c
	m.items = nil
	m.selectedIdx = 0
	m.err = nil
}

// Load returns a command that queries the conversation list.
func (m *Model) Load() tea.Cmd {
	c := m.conversations
	if c == nil {
		return nil
	}
	m.loading = true
	return func() tea.Msg {
		items, res := c.List(context.Background())
		return ConversationsMsg{Items: items, Err: res.Err}
	}
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ConversationsMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Items != nil || msg.Err == nil {
			m.items = msg.Items
		}
		m.selectedIdx = ui.Clamp(m.selectedIdx, len(m.items))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Down):
			if len(m.items) > 0 {
				m.selectedIdx = (m.selectedIdx + 1) % len(m.items)
			}
		case key.Matches(msg, m.keys.Up):
			if len(m.items) > 0 {
				m.selectedIdx--
				if m.selectedIdx < 0 {
					m.selectedIdx = len(m.items) - 1
				}
			}
		case key.Matches(msg, m.keys.Select):
			if len(m.items) == 0 {
				return m, nil
			}
			conv := m.items[m.selectedIdx]
			return m, func() tea.Msg { return OpenConversationMsg{Conversation: conv} }
		}
	}
	return m, nil
}

// View renders the inbox.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Messages"))
	b.WriteString("\n")

	switch {
	case m.conversations == nil:
		b.WriteString(theme.DimmedStyle.Render("Sign in to read your messages. Press 'L'."))
	case m.loading && len(m.items) == 0:
		b.WriteString(theme.DimmedStyle.Render("Loading..."))
	case m.err != nil && len(m.items) == 0:
		b.WriteString(theme.DimmedStyle.Render("Could not load conversations: " + m.err.Error()))
	case len(m.items) == 0:
		b.WriteString(theme.DimmedStyle.Render("No conversations yet."))
	default:
		width := max(m.width-30, 10)
		for i, c := range m.items {
			name := c.OtherParticipant.Name
			if name == "" {
				name = c.OtherParticipant.ID
			}
			line := name + "  " +
				theme.DimmedStyle.Render(ui.Truncate(c.LastMessage, width)) + "  " +
				theme.DimmedStyle.Render(ui.RelativeTime(c.UpdatedAt))
			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(line))
			} else {
				b.WriteString(theme.ListItemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(b.String())
}

// SetSize updates the inbox dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Subscribe bridges cache updates for the list into the program.
func Subscribe(c *chat.Conversations, bridge *ui.Bridge) (unsubscribe func()) {
	return c.Subscribe(func(items []model.ConversationSummary, res cache.Result) {
		bridge.Send(ConversationsMsg{Items: items, Err: res.Err})
	})
}
