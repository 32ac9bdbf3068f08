package contact

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agora/internal/contact"
	"github.com/nhle/agora/internal/theme"
)

// SentMsg reports the outcome of a submission.
type SentMsg struct {
	Action string
	Err    error
}

// CloseMsg is sent when the user leaves the form.
type CloseMsg struct{}

const (
	kindContact    = "contact"
	kindNewsletter = "newsletter"
)

type bindings struct {
	kind    string
	name    string
	email   string
	subject string
	body    string
}

// Model is the contact and newsletter form.
type Model struct {
	service *contact.Service
	form    *huh.Form
	fb      *bindings
	sending bool
	result  string
	err     error
	width   int
	height  int
}

// New creates the form. A nil service renders the unconfigured state.
func New(s *contact.Service, width, height int) Model {
	return Model{service: s, fb: &bindings{kind: kindContact}, width: width, height: height}
}

// Start resets the form, keeping the name and email typed last time.
func (m *Model) Start() tea.Cmd {
	if m.service == nil {
		return nil
	}
	m.fb.subject = ""
	m.fb.body = ""
	m.result = ""
	m.err = nil
	m.sending = false
	m.form = m.buildForm()
	return m.form.Init()
}

func (m Model) buildForm() *huh.Form {
	isContact := func() bool { return m.fb.kind == kindContact }

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What would you like to do?").
				Options(
					huh.NewOption("Send us a message", kindContact),
					huh.NewOption("Subscribe to the newsletter", kindNewsletter),
				).
				Value(&m.fb.kind),
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&m.fb.name),
			huh.NewInput().
				Title("Subject").
				Value(&m.fb.subject),
			huh.NewText().
				Title("Message").
				Value(&m.fb.body),
		).WithHideFunc(func() bool { return !isContact() }),
	).WithWidth(min(max(m.width-4, 40), 100))
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SentMsg:
		m.sending = false
		m.err = msg.Err
		if msg.Err == nil {
			m.result = "Thank you! " + msg.Action + " sent."
			return m, nil
		}
		cmd := m.Start()
		m.err = msg.Err
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return m, func() tea.Msg { return CloseMsg{} }
		}
		if m.form == nil || m.form.State == huh.StateCompleted {
			if msg.String() == "enter" {
				return m, m.Start()
			}
			return m, nil
		}
	}

	if m.form == nil || m.sending {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		m.sending = true
		return m, m.submit()
	case huh.StateAborted:
		return m, func() tea.Msg { return CloseMsg{} }
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	svc := m.service
	fb := *m.fb
	return func() tea.Msg {
		ctx := context.Background()
		if fb.kind == kindNewsletter {
			return SentMsg{Action: "Subscription", Err: validationMessage(svc.Subscribe(ctx, fb.email))}
		}
		err := svc.Contact(ctx, contact.Message{
			Name:    fb.name,
			Email:   fb.email,
			Subject: fb.subject,
			Body:    fb.body,
		})
		return SentMsg{Action: "Message", Err: validationMessage(err)}
	}
}

// validationMessage flattens field errors into one readable line.
func validationMessage(err error) error {
	fields := contact.FieldErrors(err)
	if len(fields) == 0 {
		return err
	}
	msgs := make([]string, 0, len(fields))
	for _, m := range fields {
		msgs = append(msgs, m)
	}
	sort.Strings(msgs)
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// View renders the form.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Contact"))
	b.WriteString("\n")

	switch {
	case m.service == nil:
		b.WriteString(theme.DimmedStyle.Render("Email delivery is not configured. See the email section of config.yaml."))
	case m.result != "":
		b.WriteString(m.result)
		b.WriteString("\n\n")
		b.WriteString(theme.HelpStyle.Render("enter write another | esc back"))
	case m.sending:
		b.WriteString(theme.DimmedStyle.Render("Sending..."))
	default:
		if m.err != nil {
			b.WriteString(theme.UnreadMarkerStyle.Render(m.err.Error()))
			b.WriteString("\n\n")
		}
		if m.form != nil {
			b.WriteString(m.form.View())
		}
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
