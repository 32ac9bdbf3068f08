package ui

import tea "github.com/charmbracelet/bubbletea"

// Bridge carries messages produced outside the Bubble Tea loop (cache
// subscriptions, realtime events, theme changes) into it. Producers call
// Send from any goroutine; the program receives them through Wait.
type Bridge struct {
	ch chan tea.Msg
}

// Bridged wraps a message received through a Bridge. Only bridged
// messages re-arm the bridge, which keeps a single waiter outstanding.
type Bridged struct {
	Msg tea.Msg
}

// NewBridge creates a bridge buffering up to size messages.
func NewBridge(size int) *Bridge {
	if size <= 0 {
		size = 64
	}
	return &Bridge{ch: make(chan tea.Msg, size)}
}

// Send queues msg without blocking. When the buffer is full the message is
// dropped; every bridged message describes current state, so a later one
// supersedes it.
func (b *Bridge) Send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

// Wait returns a tea.Cmd that blocks until the next message and delivers
// it wrapped in Bridged. Handle it and call Wait again to keep listening.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		return Bridged{Msg: <-b.ch}
	}
}
