package app

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/realtime"
	"github.com/nhle/agora/internal/session"
	"github.com/nhle/agora/internal/ui"
)

func newSignedOut(t *testing.T) Model {
	t.Helper()
	c := cache.New()
	t.Cleanup(c.Close)

	m := New(Deps{Cache: c})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, r rune) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return next.(Model)
}

func TestNew_SignedOutStartsAtLogin(t *testing.T) {
	c := cache.New()
	defer c.Close()

	m := New(Deps{Cache: c})

	assert.Equal(t, ViewLogin, m.currentView)
	assert.Nil(t, m.wiring)
	assert.Equal(t, "Loading...", m.View())
}

func TestView_HeaderShowsSignedOut(t *testing.T) {
	m := newSignedOut(t)

	view := m.View()
	assert.Contains(t, view, "Agora")
	assert.Contains(t, view, "signed out")
}

func TestGlobalKeys_SwitchViews(t *testing.T) {
	m := newSignedOut(t)
	m.currentView = ViewFeed

	m = press(t, m, '?')
	assert.Equal(t, ViewHelp, m.currentView)
	m = press(t, m, '?')
	assert.Equal(t, ViewFeed, m.currentView)

	m = press(t, m, '3')
	assert.Equal(t, ViewLibrary, m.currentView)
	m = press(t, m, '4')
	assert.Equal(t, ViewDashboard, m.currentView)
}

func TestGlobalKeys_IgnoredWhileTyping(t *testing.T) {
	m := newSignedOut(t)
	require.Equal(t, ViewLogin, m.currentView)

	m = press(t, m, '3')
	assert.Equal(t, ViewLogin, m.currentView)
}

func TestReport_UnauthorizedSendsToLogin(t *testing.T) {
	m := newSignedOut(t)
	m.currentView = ViewFeed

	cmd := m.report("mark read", fmt.Errorf("marking: %w", &api.AuthError{Method: "PUT", Path: "/notifications"}))

	assert.NotNil(t, cmd)
	assert.Equal(t, ViewLogin, m.currentView)
	assert.Empty(t, m.errorText)
}

func TestReport_Failures(t *testing.T) {
	m := newSignedOut(t)

	m.report("approve", session.Guard(m.session, session.ModerateContent))
	assert.Equal(t, "Your role does not allow approve", m.errorText)

	m.report("send", &api.StatusError{StatusCode: 500, Message: "boom"})
	assert.Contains(t, m.errorText, "send failed")

	m.report("send", nil)
	assert.Empty(t, m.errorText)
	assert.Equal(t, "Done: send", m.notice)
}

func TestExecuteCommand(t *testing.T) {
	m := newSignedOut(t)

	m.executeCommand("library")
	assert.Equal(t, ViewLibrary, m.currentView)

	m.executeCommand("frobnicate")
	assert.Equal(t, "unknown command: frobnicate", m.errorText)

	// Signed out: logout is a no-op and mark all read has no feed.
	assert.Nil(t, m.executeCommand("logout"))
	assert.Nil(t, m.executeCommand("mark all read"))
}

func TestBridge_OnlyBridgedMessagesRearm(t *testing.T) {
	m := newSignedOut(t)

	next, cmd := m.Update(connStateMsg{state: realtime.Connected})
	assert.Nil(t, cmd)
	assert.Equal(t, realtime.Connected, next.(Model).conn)

	next, cmd = m.Update(ui.Bridged{Msg: connStateMsg{state: realtime.Connected}})
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.Equal(t, realtime.Connected, m.conn)

	m.bridge.Send(themeChangedMsg{dark: true})
	assert.Equal(t, ui.Bridged{Msg: themeChangedMsg{dark: true}}, cmd())
}
