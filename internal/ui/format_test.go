package ui_test

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/nhle/agora/internal/ui"
)

func TestRelativeTime(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "", ui.RelativeTime(time.Time{}))
	assert.Equal(t, "just now", ui.RelativeTime(now.Add(-10*time.Second)))
	assert.Equal(t, "5m ago", ui.RelativeTime(now.Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3h ago", ui.RelativeTime(now.Add(-3*time.Hour-time.Minute)))
	assert.Equal(t, "2d ago", ui.RelativeTime(now.Add(-49*time.Hour)))

	old := time.Date(2024, time.March, 9, 12, 0, 0, 0, time.Local)
	assert.Equal(t, "Mar 9, 2024", ui.RelativeTime(old))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", ui.Truncate("  short ", 10))
	assert.Equal(t, "medit…", ui.Truncate("meditations", 6))
	assert.Equal(t, "…", ui.Truncate("stoa", 1))
	assert.Equal(t, "", ui.Truncate("stoa", 0))
	assert.Equal(t, "ευδαι…", ui.Truncate("ευδαιμονία", 6))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, ui.Clamp(3, 0))
	assert.Equal(t, 0, ui.Clamp(-1, 4))
	assert.Equal(t, 3, ui.Clamp(7, 4))
	assert.Equal(t, 2, ui.Clamp(2, 4))
}

type pingMsg struct{ n int }

func TestBridge_DeliversInOrder(t *testing.T) {
	b := ui.NewBridge(4)

	b.Send(pingMsg{1})
	b.Send(pingMsg{2})

	assert.Equal(t, ui.Bridged{Msg: pingMsg{1}}, b.Wait()())
	assert.Equal(t, ui.Bridged{Msg: pingMsg{2}}, b.Wait()())
}

func TestBridge_DropsWhenFull(t *testing.T) {
	b := ui.NewBridge(1)

	b.Send(pingMsg{1})
	b.Send(pingMsg{2})

	done := make(chan tea.Msg, 1)
	go func() { done <- b.Wait()() }()

	select {
	case msg := <-done:
		assert.Equal(t, ui.Bridged{Msg: pingMsg{1}}, msg)
	case <-time.After(time.Second):
		t.Fatal("bridge did not deliver")
	}
}
