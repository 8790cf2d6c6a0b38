package chatdemo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// Handler is the conversation surface a Runner drives.
type Handler interface {
	Handle(ctx context.Context, threadID string, in domain.Input) (string, error)
}

// ContentRenderer transforms a reply before it is written, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

// Runner is a line-oriented chat loop over arbitrary IO, so the bot can be
// exercised from a terminal or a test without any messaging transport.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// Run reads one message per line and writes the replies for threadID until
// EOF, "exit" or "quit". Handler errors are shown and the loop continues.
func (r *Runner) Run(ctx context.Context, h Handler, threadID string) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)

	if !r.Headless {
		fmt.Fprintf(r.Output, "--- thread %s (exit to quit) ---\n", threadID)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := lines.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("input error: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		text = strings.TrimSpace(text)
		switch {
		case text == "exit" || text == "quit":
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return nil
		case text != "":
			reply, err := h.Handle(ctx, threadID, domain.TextInput(text))
			if err != nil {
				fmt.Fprintf(r.Output, "error: %v\n", err)
			} else {
				r.print(reply)
			}
		}

		if eof {
			return nil
		}
	}
}

func (r *Runner) print(reply string) {
	out := reply
	if r.Renderer != nil {
		if rendered, err := r.Renderer(reply); err == nil {
			out = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(out))
}
