package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	chatdemo "github.com/JonathanLopez0327/chat-demo"
	"github.com/JonathanLopez0327/chat-demo/internal/config"
	"github.com/JonathanLopez0327/chat-demo/internal/presentation/graph"
	"github.com/JonathanLopez0327/chat-demo/internal/store"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/session"
	"github.com/JonathanLopez0327/chat-demo/pkg/thread"
	"gopkg.in/yaml.v3"
)

// Sessions are the admin operations over persisted threads.
type Sessions struct {
	cps      *chatdemo.Checkpoints
	repo     *store.Store
	sessions *session.Manager
	cfg      *config.Config
	out      io.Writer
}

// OpenSessions opens the configured checkpoint backend for inspection.
func OpenSessions(ctx context.Context, opts Options, out io.Writer) (*Sessions, error) {
	cfg, err := opts.Load()
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	cps, err := chatdemo.OpenCheckpoints(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	repo, err := store.Open(ctx, store.WithDSN(cfg.DatabaseDSN), store.WithLogger(logger))
	if err != nil {
		if cps.Close != nil {
			_ = cps.Close()
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sessOpts := []session.Option{session.WithLogger(logger)}
	if cps.Locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(cps.Locker))
	}
	return &Sessions{
		cps:      cps,
		repo:     repo,
		sessions: session.NewManager(cps.Store, sessOpts...),
		cfg:      cfg,
		out:      out,
	}, nil
}

// Close releases the backend and the database.
func (s *Sessions) Close() error {
	err := s.repo.Close()
	if s.cps.Close != nil {
		err = errors.Join(err, s.cps.Close())
	}
	return err
}

// List prints every persisted thread with its pending node.
func (s *Sessions) List(ctx context.Context) error {
	ids, err := s.cps.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing threads: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(s.out, "No active threads found.")
		return nil
	}

	fmt.Fprintln(s.out, "Active Threads:")
	for _, id := range ids {
		cp, err := s.cps.Store.Load(ctx, id)
		if err != nil {
			// Deleted between List and Load.
			if errors.Is(err, domain.ErrCheckpointNotFound) {
				continue
			}
			fmt.Fprintf(s.out, "- %s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(s.out, "- %s  node=%s  version=%d  updated=%s\n",
			id, cp.PendingNode, cp.Version, cp.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// Inspect prints the checkpoint of one thread as json or yaml. With
// withGraph it also prints the flow with the thread's position highlighted.
func (s *Sessions) Inspect(ctx context.Context, threadID, format string, withGraph bool) error {
	cp, err := s.cps.Store.Load(ctx, threadID)
	if err != nil {
		return fmt.Errorf("error loading thread '%s': %w", threadID, err)
	}

	var data []byte
	switch format {
	case "", "json":
		data, err = json.MarshalIndent(cp, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(cp)
	default:
		return fmt.Errorf("unknown format %q (json or yaml)", format)
	}
	if err != nil {
		return fmt.Errorf("error marshaling checkpoint: %w", err)
	}
	fmt.Fprintln(s.out, string(data))

	if withGraph {
		g, err := StaticGraph(s.cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(s.out, graph.GenerateMermaid(g, &graph.Overlay{CurrentNode: cp.PendingNode}))
	}
	return nil
}

// Remove resets the given threads the way the bot's reset does: the active
// conversation is cancelled, then the checkpoint and the log are dropped.
// Every id is attempted; the first error is returned.
func (s *Sessions) Remove(ctx context.Context, threadIDs ...string) error {
	var first error
	for _, id := range threadIDs {
		if err := thread.Reset(ctx, s.sessions, s.repo, id, "Eliminado por administrador"); err != nil {
			fmt.Fprintf(s.out, "Error removing '%s': %v\n", id, err)
			if first == nil {
				first = err
			}
			continue
		}
		fmt.Fprintf(s.out, "Removed thread '%s'\n", id)
	}
	return first
}
