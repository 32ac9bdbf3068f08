package chatbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agora/internal/chatbot"
	"github.com/nhle/agora/internal/theme"
)

// PanelCloseMsg signals the parent to close the chatbot panel.
type PanelCloseMsg struct{}

// ResponseChunkMsg carries a streaming reply chunk. The stream it came
// from travels with it so the next chunk can be awaited.
type ResponseChunkMsg struct {
	Text   string
	Done   bool
	Err    error
	stream <-chan chatbot.StreamChunk
}

// displayMessage represents a message rendered in the conversation viewport.
type displayMessage struct {
	Role    string
	Content string
}

// Model is the chatbot panel.
type Model struct {
	bot          *chatbot.Bot
	input        textarea.Model
	viewport     viewport.Model
	messages     []displayMessage
	streaming    bool
	width        int
	height       int
	unconfigured bool
}

// New creates a chatbot panel. A nil bot shows the configuration hint.
func New(bot *chatbot.Bot, width, height int) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about a practice, a passage, a book..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetWidth(width - 4)
	ta.SetHeight(3)
	ta.CharLimit = 2000
	ta.Focus()

	vpHeight := max(height-8, 4)

	vp := viewport.New(width-4, vpHeight)
	vp.Style = lipgloss.NewStyle()

	return Model{
		bot:          bot,
		input:        ta,
		viewport:     vp,
		width:        width,
		height:       height,
		unconfigured: bot == nil,
	}
}

// Init returns the initial command for the panel.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ResponseChunkMsg:
		return m.handleResponseChunk(msg)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmds []tea.Cmd

	var taCmd tea.Cmd
	m.input, taCmd = m.input.Update(msg)
	if taCmd != nil {
		cmds = append(cmds, taCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	if vpCmd != nil {
		cmds = append(cmds, vpCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.streaming {
			return m, nil
		}
		return m, func() tea.Msg {
			return PanelCloseMsg{}
		}

	case "enter":
		if m.unconfigured || m.streaming {
			return m, nil
		}

		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}

		m.input.Reset()
		m.messages = append(m.messages, displayMessage{Role: "You", Content: text})
		m.streaming = true
		m.refreshViewport()

		return m, m.ask(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResponseChunk(msg ResponseChunkMsg) (Model, tea.Cmd) {
	text := msg.Text
	if msg.Err != nil {
		text = fmt.Sprintf("Error: %v", msg.Err)
	}

	if text != "" {
		if len(m.messages) > 0 && m.messages[len(m.messages)-1].Role == "Guide" {
			m.messages[len(m.messages)-1].Content += text
		} else {
			m.messages = append(m.messages, displayMessage{Role: "Guide", Content: text})
		}
	}

	if msg.Done {
		m.streaming = false
		m.refreshViewport()
		return m, nil
	}

	m.refreshViewport()
	return m, waitForNextChunk(msg.stream)
}

// ask returns a command that sends the question and yields the first
// chunk of the reply.
func (m Model) ask(text string) tea.Cmd {
	bot := m.bot
	return func() tea.Msg {
		ch, err := bot.Ask(context.Background(), text)
		if err != nil {
			return ResponseChunkMsg{Err: err, Done: true}
		}
		return waitForNextChunk(ch)()
	}
}

// waitForNextChunk returns a command that waits for the next chunk from
// the streaming channel.
func waitForNextChunk(ch <-chan chatbot.StreamChunk) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-ch
		if !ok {
			return ResponseChunkMsg{Done: true}
		}
		return ResponseChunkMsg{
			Text:   chunk.Text,
			Done:   chunk.Done,
			Err:    chunk.Err,
			stream: ch,
		}
	}
}

// refreshViewport re-renders the conversation content and scrolls to bottom.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) renderConversation() string {
	if len(m.messages) == 0 {
		return lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("Ask anything about the community's practices and readings.")
	}

	var sections []string

	roleStyle := lipgloss.NewStyle().Bold(true)
	userStyle := roleStyle.Foreground(theme.ColorSky)
	guideStyle := roleStyle.Foreground(theme.ColorSage)
	contentStyle := lipgloss.NewStyle().Foreground(theme.ColorText)

	for _, msg := range m.messages {
		label := guideStyle.Render("Guide:")
		if msg.Role == "You" {
			label = userStyle.Render("You:")
		}

		sections = append(sections, label, contentStyle.Render(msg.Content), "")
	}

	if m.streaming {
		sections = append(sections, theme.HelpStyle.Render("..."))
	}

	return strings.Join(sections, "\n")
}

// View renders the chatbot panel.
func (m Model) View() string {
	if m.unconfigured {
		return m.renderUnconfigured()
	}

	title := theme.TitleStyle.Render("Guide")

	separator := lipgloss.NewStyle().Foreground(theme.ColorSubtle).Render(
		strings.Repeat("─", max(min(m.width-6, 80), 1)),
	)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		m.viewport.View(),
		separator,
		m.input.View(),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

func (m Model) renderUnconfigured() string {
	style := lipgloss.NewStyle().
		Width(m.width - 4).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	msg := "The guide needs an inference endpoint.\n\n" +
		"Set chatbot.endpoint in config.yaml or the\n" +
		"AGORA_CHATBOT_ENDPOINT environment variable.\n\n" +
		"Press Esc to go back."

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(style.Render(msg))
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width - 4)
	m.viewport.Width = width - 4
	m.viewport.Height = max(height-8, 4)
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Reset clears the conversation on screen and in the bot's history.
func (m *Model) Reset() {
	m.messages = m.messages[:0]
	m.streaming = false
	m.input.Reset()
	m.refreshViewport()
	if m.bot != nil {
		m.bot.Reset()
	}
}
