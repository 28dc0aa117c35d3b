package tui

import (
	"github.com/muesli/termenv"
)

// Palette styles wizard output for one terminal color profile.
type Palette struct {
	profile termenv.Profile
}

// NewPalette detects the color profile of stdout.
func NewPalette() Palette {
	return Palette{profile: termenv.ColorProfile()}
}

// PlainPalette emits no escape sequences.
func PlainPalette() Palette {
	return Palette{profile: termenv.Ascii}
}

func (p Palette) color(s, hex string) string {
	return p.profile.String(s).Foreground(p.profile.Color(hex)).String()
}

// Value styles an assigned value.
func (p Palette) Value(s string) string { return p.color(s, "#38bdf8") }

// Legal styles an option that is still allowed.
func (p Palette) Legal(s string) string { return p.color(s, "#34d399") }

// Error styles rejections and blocked variables.
func (p Palette) Error(s string) string { return p.color(s, "#f87171") }

// Active styles the active stage title.
func (p Palette) Active(s string) string {
	return p.profile.String(s).Bold().Foreground(p.profile.Color("#facc15")).String()
}

// Faint styles secondary text.
func (p Palette) Faint(s string) string {
	return p.profile.String(s).Faint().String()
}
