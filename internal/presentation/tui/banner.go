package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the chat REPL banner in a blue-to-green gradient.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  ___            _     _            _   ____        _   ", "#60a5fa"},
		{" |_ _|_ __   ___(_) __| | ___ _ __ | |_| __ )  ___ | |_ ", "#38bdf8"},
		{"  | || '_ \\ / __| |/ _` |/ _ \\ '_ \\| __|  _ \\ / _ \\| __|", "#22d3ee"},
		{"  | || | | | (__| | (_| |  __/ | | | |_| |_) | (_) | |_ ", "#2dd4bf"},
		{" |___|_| |_|\\___|_|\\__,_|\\___|_| |_|\\__|____/ \\___/ \\__|", "#34d399"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  "+version).Faint())
	}
	fmt.Fprintln(w)
}
