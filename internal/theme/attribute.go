package theme

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/observe"
)

// Attribute is the rendered theme marker. Setting it flips the lipgloss
// renderer's dark-background flag, which is what every AdaptiveColor in
// this package resolves against, and notifies observers of the mutation.
type Attribute struct {
	mu        sync.Mutex
	value     model.Theme
	renderer  *lipgloss.Renderer
	observers observe.Registry[model.Theme]
}

// NewAttribute creates an attribute bound to renderer. A nil renderer
// binds to lipgloss's default renderer.
func NewAttribute(renderer *lipgloss.Renderer) *Attribute {
	if renderer == nil {
		renderer = lipgloss.DefaultRenderer()
	}
	return &Attribute{
		value:    model.ThemeLight,
		renderer: renderer,
	}
}

// Value returns the current attribute value.
func (a *Attribute) Value() model.Theme {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

// Set updates the attribute. Observers are only notified when the value
// actually changes.
func (a *Attribute) Set(t model.Theme) {
	a.mu.Lock()
	if a.value == t {
		a.renderer.SetHasDarkBackground(t.IsDark())
		a.mu.Unlock()
		return
	}
	a.value = t
	a.renderer.SetHasDarkBackground(t.IsDark())
	a.mu.Unlock()

	a.observers.Notify(t)
}

// Observe registers fn for attribute mutations.
func (a *Attribute) Observe(fn func(model.Theme)) (disconnect func()) {
	return a.observers.Add(fn)
}

// Renderer returns the renderer the attribute drives.
func (a *Attribute) Renderer() *lipgloss.Renderer {
	return a.renderer
}
