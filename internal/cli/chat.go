package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	chatdemo "github.com/JonathanLopez0327/chat-demo"
	"github.com/JonathanLopez0327/chat-demo/internal/config"
	"github.com/JonathanLopez0327/chat-demo/internal/presentation/tui"
	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/memory"
)

// ChatOptions configure an interactive terminal conversation.
type ChatOptions struct {
	Options
	ThreadID string
	// Ephemeral keeps users, incidents and checkpoints in memory.
	Ephemeral bool
	Headless  bool
	Fresh     bool
}

// RunChat talks to the bot from a terminal, as if the thread were a
// WhatsApp number. extra options are appended after the defaults.
func RunChat(ctx context.Context, opts ChatOptions, in io.Reader, out io.Writer, extra ...chatdemo.Option) error {
	cfg, err := opts.Load()
	if err != nil {
		return err
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}

	botOpts := []chatdemo.Option{
		chatdemo.WithConfig(cfg),
		chatdemo.WithLogger(logger),
	}
	if opts.Ephemeral {
		cfg.CheckpointBackend = config.BackendMemory
		botOpts = append(botOpts, chatdemo.WithRepository(memory.NewRepository()))
	}
	if opts.Debug {
		botOpts = append(botOpts, chatdemo.WithLifecycleHooks(DebugHooks(logger)))
	}
	botOpts = append(botOpts, extra...)

	bot, err := chatdemo.New(ctx, botOpts...)
	if err != nil {
		return fmt.Errorf("error initializing bot: %w", err)
	}
	defer bot.Close()

	if opts.Fresh {
		if err := bot.Reset(ctx, opts.ThreadID); err != nil {
			return fmt.Errorf("failed to reset thread: %w", err)
		}
	}

	runner := &chatdemo.Runner{
		Input:    in,
		Output:   out,
		Headless: opts.Headless,
	}
	if !opts.Headless {
		tui.PrintBanner(out, chatdemo.Version)
		runner.Renderer = chatdemo.ContentRenderer(tui.NewRenderer())
		if cp, err := bot.Sessions().Load(ctx, opts.ThreadID); err == nil {
			printSystemMessage(out, "Resuming thread '%s' at '%s'.", opts.ThreadID, cp.PendingNode)
		}
	}

	err = runner.Run(ctx, bot, opts.ThreadID)
	if errors.Is(err, context.Canceled) {
		printSystemMessage(out, "Interrupted.")
		return nil
	}
	return err
}
