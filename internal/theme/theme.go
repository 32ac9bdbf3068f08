package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agora/internal/model"
)

// Adaptive color pairs (dark theme value, light theme value). Which side is
// used follows the Attribute, not the terminal's own background.
var (
	ColorSage     = lipgloss.AdaptiveColor{Dark: "#8FBC8F", Light: "#2F6B4F"}
	ColorSand     = lipgloss.AdaptiveColor{Dark: "#E9C46A", Light: "#9C6B00"}
	ColorClay     = lipgloss.AdaptiveColor{Dark: "#E76F51", Light: "#B23A1E"}
	ColorLavender = lipgloss.AdaptiveColor{Dark: "#B8A1E3", Light: "#6B4FA3"}
	ColorSky      = lipgloss.AdaptiveColor{Dark: "#7FB3D5", Light: "#2B6CB0"}
	ColorGray     = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorText     = lipgloss.AdaptiveColor{Dark: "#F1EFE9", Light: "#1F1D1A"}
	ColorSurface  = lipgloss.AdaptiveColor{Dark: "#2B2A28", Light: "#F4F1EA"}
	ColorSubtle   = lipgloss.AdaptiveColor{Dark: "#4A4744", Light: "#D8D2C4"}
	ColorBorder   = lipgloss.AdaptiveColor{Dark: "#4A4744", Light: "#E2DCCD"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorText).
	Background(ColorSage).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorText).
	Background(ColorSubtle).
	Padding(0, 1)

// ErrorBarStyle replaces the status bar when an action failed.
var ErrorBarStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorText).
	Background(ColorClay).
	Padding(0, 1)

// PanelStyle wraps a view's content area.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorSage).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorSage)

// DimmedStyle renders secondary text such as timestamps.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// UnreadMarkerStyle renders the dot in front of unread notifications.
var UnreadMarkerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorClay)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// TitleStyle is used for view titles inside panels.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorText).
	MarginBottom(1)

// NotificationStyle returns a color-coded style for a notification type.
func NotificationStyle(t model.NotificationType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch t {
	case model.NotificationFollow:
		return base.Foreground(ColorSky)
	case model.NotificationReaction:
		return base.Foreground(ColorSand)
	case model.NotificationComment:
		return base.Foreground(ColorSage)
	case model.NotificationMention:
		return base.Foreground(ColorLavender)
	default:
		return base.Foreground(ColorGray)
	}
}

// RoleStyle returns a badge style for a community role.
func RoleStyle(r model.Role) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch r {
	case model.RoleAdmin:
		return base.Foreground(ColorClay)
	case model.RoleContributor:
		return base.Foreground(ColorLavender)
	case model.RoleMember:
		return base.Foreground(ColorSage)
	default:
		return base.Foreground(ColorGray)
	}
}

// ConnectionStyle colors the realtime connection indicator.
func ConnectionStyle(connected bool) lipgloss.Style {
	if connected {
		return lipgloss.NewStyle().Foreground(ColorSage)
	}
	return lipgloss.NewStyle().Foreground(ColorSand)
}
