package model

import "strings"

// Theme is the two-valued display mode persisted across sessions.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme normalizes a stored value. Anything other than "dark"
// resolves to the light theme, which is the documented default.
func ParseTheme(v string) Theme {
	if strings.EqualFold(strings.TrimSpace(v), string(ThemeDark)) {
		return ThemeDark
	}
	return ThemeLight
}

// IsDark reports whether t is the dark theme.
func (t Theme) IsDark() bool {
	return t == ThemeDark
}

// Opposite returns the other theme.
func (t Theme) Opposite() Theme {
	if t.IsDark() {
		return ThemeLight
	}
	return ThemeDark
}
