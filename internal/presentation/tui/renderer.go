package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns bot replies into terminal output.
type Renderer func(string) (string, error)

// NewRenderer returns a glamour markdown renderer when stdout is a terminal,
// and a plain pass-through otherwise so piped transcripts stay readable.
func NewRenderer() Renderer {
	if !IsTerminal(os.Stdout) {
		return Plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return Plain
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return markdown, err
		}
		return strings.TrimRight(out, "\n") + "\n", nil
	}
}

// Plain returns the reply unchanged with a trailing newline.
func Plain(s string) (string, error) {
	return strings.TrimRight(s, "\n") + "\n", nil
}

// IsTerminal reports whether f is attached to a TTY.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
