package login

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/credential"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/session"
	"github.com/nhle/agora/internal/theme"
)

// Authenticator exchanges credentials for an access token.
type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
}

// TokenStore persists the issued token.
type TokenStore interface {
	Set(key, value string) error
}

// LoggedInMsg is sent after a successful sign-in.
type LoggedInMsg struct {
	Session model.Session
	User    model.User
}

// CancelMsg is sent when the user leaves the form.
type CancelMsg struct{}

type failedMsg struct{ err error }

type bindings struct {
	email    string
	password string
}

// Model is the sign-in form.
type Model struct {
	auth       Authenticator
	tokens     TokenStore
	form       *huh.Form
	fb         *bindings
	submitting bool
	err        error
	notice     string
	width      int
	height     int
}

// New creates the sign-in form.
func New(auth Authenticator, tokens TokenStore, width, height int) Model {
	return Model{auth: auth, tokens: tokens, fb: &bindings{}, width: width, height: height}
}

// Start resets the form. notice is shown above it, e.g. why the user was
// sent here.
func (m *Model) Start(notice string) tea.Cmd {
	m.fb.password = ""
	m.err = nil
	m.notice = notice
	m.submitting = false
	m.form = m.buildForm()
	return m.form.Init()
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("email is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("password is required")
					}
					return nil
				}),
		),
	).WithWidth(min(max(m.width-4, 40), 80))
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case failedMsg:
		cmd := m.Start(m.notice)
		m.err = msg.err
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	if m.form == nil || m.submitting {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		m.submitting = true
		return m, m.submit()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	auth, tokens := m.auth, m.tokens
	req := api.LoginRequest{
		Email:    strings.TrimSpace(m.fb.email),
		Password: m.fb.password,
	}
	return func() tea.Msg {
		resp, err := auth.Login(context.Background(), req)
		if err != nil {
			return failedMsg{err: describe(err)}
		}

		s, err := session.FromToken(resp.Token)
		if err != nil {
			return failedMsg{err: err}
		}
		if err := tokens.Set(credential.AccessTokenKey, resp.Token); err != nil {
			return failedMsg{err: err}
		}
		return LoggedInMsg{Session: s, User: resp.User}
	}
}

func describe(err error) error {
	if api.IsUnauthorized(err) {
		return fmt.Errorf("email or password is incorrect")
	}
	return err
}

// View renders the form.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Sign in"))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(theme.DimmedStyle.Render(m.notice))
		b.WriteString("\n\n")
	}
	if m.err != nil {
		b.WriteString(theme.UnreadMarkerStyle.Render(m.err.Error()))
		b.WriteString("\n\n")
	}

	switch {
	case m.submitting:
		b.WriteString(theme.DimmedStyle.Render("Signing in..."))
	case m.form != nil:
		b.WriteString(m.form.View())
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
