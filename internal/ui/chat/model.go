package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	agchat "github.com/nhle/agora/internal/chat"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/theme"
	"github.com/nhle/agora/internal/ui"
)

// CloseMsg signals the parent to close the chat window.
type CloseMsg struct{}

// MessagesMsg carries the window's current message list.
type MessagesMsg struct {
	ConversationID string
	Messages       []model.ChatMessage
	Err            error
}

// SentMsg reports the outcome of a send.
type SentMsg struct {
	Err error
}

// Model is the chat window view for one conversation.
type Model struct {
	window   *agchat.Window
	peerName string
	selfID   string
	input    textinput.Model
	viewport viewport.Model
	messages []model.ChatMessage
	sending  bool
	err      error
	width    int
	height   int
}

// New creates an empty chat view.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "Write a message..."
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Width = width - 8

	vp := viewport.New(width-6, max(height-8, 4))
	vp.Style = lipgloss.NewStyle()

	return Model{input: ti, viewport: vp, width: width, height: height}
}

// Open points the view at w. The caller owns attaching w to the realtime
// channel and subscribing it to the bridge.
func (m *Model) Open(w *agchat.Window, selfID, peerName string) tea.Cmd {
	m.window = w
	m.selfID = selfID
	m.peerName = peerName
	m.messages = nil
	m.err = nil
	m.sending = false
	m.input.Reset()
	m.refreshViewport()
	return tea.Batch(m.input.Focus(), m.load())
}

// ConversationID returns the open conversation, or "" when none is open.
func (m Model) ConversationID() string {
	if m.window == nil {
		return ""
	}
	return m.window.ConversationID()
}

func (m Model) load() tea.Cmd {
	w := m.window
	return func() tea.Msg {
		err := w.Load(context.Background())
		return MessagesMsg{ConversationID: w.ConversationID(), Messages: w.Messages(), Err: err}
	}
}

// Update handles messages for the chat view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case MessagesMsg:
		if msg.ConversationID != m.ConversationID() {
			return m, nil
		}
		m.err = msg.Err
		m.messages = msg.Messages
		m.refreshViewport()
		return m, nil

	case SentMsg:
		m.sending = false
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return CloseMsg{} }

		case "enter":
			if m.window == nil || m.sending {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.sending = true
			w := m.window
			return m, func() tea.Msg {
				_, err := w.Send(context.Background(), text)
				return SentMsg{Err: err}
			}

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return theme.DimmedStyle.Render("No messages yet. Say hello.")
	}

	self := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorSky)
	peer := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorSage)

	var lines []string
	for _, msg := range m.messages {
		var label string
		if msg.SenderID == m.selfID {
			label = self.Render("You")
		} else {
			label = peer.Render(m.peerName)
		}

		meta := ui.RelativeTime(msg.CreatedAt)
		if msg.Pending() {
			meta = "sending..."
		}
		lines = append(lines,
			label+" "+theme.DimmedStyle.Render(meta),
			msg.Content,
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// View renders the chat window.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Chat with " + m.peerName)

	footer := m.input.View()
	if m.err != nil {
		footer = theme.UnreadMarkerStyle.Render(m.err.Error()) + "\n" + footer
	}

	sep := theme.DimmedStyle.Render(strings.Repeat("─", max(min(m.width-8, 80), 1)))

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View(), sep, footer)
	return theme.PanelStyle.Width(m.width - 4).Render(content)
}

// SetSize updates the chat window dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 8
	m.viewport.Width = width - 6
	m.viewport.Height = max(height-8, 4)
}

// Subscribe bridges window changes into the program.
func Subscribe(w *agchat.Window, bridge *ui.Bridge) (unsubscribe func()) {
	id := w.ConversationID()
	return w.Subscribe(func(msgs []model.ChatMessage) {
		bridge.Send(MessagesMsg{ConversationID: id, Messages: msgs})
	})
}
