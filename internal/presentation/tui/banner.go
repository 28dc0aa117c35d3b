package tui

import (
	"fmt"
	"io"
)

// PrintBanner writes the caseconf banner followed by the blueprint name.
func PrintBanner(w io.Writer, pal Palette, blueprint string) {
	lines := []struct{ text, color string }{
		{"   ___ __ _ ___  ___  ___ ___  _ __  / _|", "#38bdf8"},
		{"  / __/ _` / __|/ _ \\/ __/ _ \\| '_ \\| |_ ", "#22d3ee"},
		{" | (_| (_| \\__ \\  __/ (_| (_) | | | |  _|", "#2dd4bf"},
		{"  \\___\\__,_|___/\\___|\\___\\___/|_| |_|_|  ", "#34d399"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, pal.color(l.text, l.color))
	}
	if blueprint != "" {
		fmt.Fprintln(w, pal.Faint("  blueprint: "+blueprint))
	}
	fmt.Fprintln(w)
}
