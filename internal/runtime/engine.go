package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

// ErrUnexpectedSuspend is returned when a node added with Run asks to suspend.
var ErrUnexpectedSuspend = errors.New("node cannot suspend")

// Engine is the resumable graph runner.
type Engine struct {
	graph *dsl.Graph
	store ports.CheckpointStore

	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	maxSteps int
	now      func() time.Time
}

// NewEngine creates an engine for graph persisting into store.
func NewEngine(graph *dsl.Graph, store ports.CheckpointStore, opts ...Option) *Engine {
	e := &Engine{
		graph:    graph,
		store:    store,
		logger:   logging.NewNop(),
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the compiled graph the engine runs.
func (e *Engine) Graph() *dsl.Graph {
	return e.graph
}

// Start begins a fresh run for threadID from the entry node.
// A previous checkpoint of the thread is replaced, guarded by its version.
func (e *Engine) Start(ctx context.Context, threadID string, seed domain.ConversationState) (*domain.StepResult, error) {
	var (
		version  int64
		loadedAt time.Time
	)
	prev, err := e.store.Load(ctx, threadID)
	switch {
	case err == nil:
		version, loadedAt = prev.Version, prev.UpdatedAt
		if prev.Active() {
			e.logger.DebugContext(ctx, "restarting active thread", "thread_id", threadID, "pending", prev.PendingNode)
		}
	case errors.Is(err, domain.ErrCheckpointNotFound):
	default:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cp := domain.NewCheckpoint(threadID, seed.Clone())
	cp.Version = version
	cp.UpdatedAt = loadedAt
	if cp.State.Draft == nil {
		cp.State.Draft = map[string]string{}
	}
	return e.run(ctx, cp, e.graph.Entry(), nil)
}

// Resume delivers input to the node the thread is suspended on and continues.
// It fails with domain.ErrNoActiveThread when nothing is pending.
func (e *Engine) Resume(ctx context.Context, threadID string, input domain.Input) (*domain.StepResult, error) {
	cp, err := e.store.Load(ctx, threadID)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		return nil, fmt.Errorf("thread %q: %w", threadID, domain.ErrNoActiveThread)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if !cp.Active() {
		return nil, fmt.Errorf("thread %q: %w", threadID, domain.ErrNoActiveThread)
	}

	pending := cp.PendingNode
	cp.PendingNode = ""
	in := input
	return e.run(ctx, cp, pending, &in)
}

// run advances from current until suspension or a terminal, then saves once.
func (e *Engine) run(ctx context.Context, cp *domain.Checkpoint, current string, in *domain.Input) (*domain.StepResult, error) {
	before := cp.State.Clone()
	state := cp.State
	var path []string
	ctx = domain.WithStep(ctx, domain.Step{ThreadID: cp.ThreadID, Version: cp.Version, LoadedAt: cp.UpdatedAt})

	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if e.graph.IsTerminal(current) {
			state.CurrentNode = current
			cp.State = state
			cp.PendingNode = ""
			if err := e.save(ctx, cp); err != nil {
				return nil, err
			}
			e.emitFinish(ctx, cp.ThreadID, current, len(path))
			e.logger.DebugContext(ctx, "thread finished", "thread_id", cp.ThreadID, "node", current, "steps", len(path))
			return e.result(cp, before, path, domain.StepFinished, "", current), nil
		}

		if steps >= e.maxSteps {
			return nil, fmt.Errorf("thread %q after %d nodes: %w", cp.ThreadID, steps, domain.ErrStepLimit)
		}

		node, ok := e.graph.Node(current)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownNode, current)
		}

		e.emitNodeEnter(ctx, cp.ThreadID, node.Name)
		update, err := node.Fn(ctx, state.Clone(), in)
		in = nil
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", node.Name, err)
		}
		if update.Suspends() && !node.Waits {
			return nil, fmt.Errorf("node %q: %w", node.Name, ErrUnexpectedSuspend)
		}

		state.Apply(update)
		path = append(path, node.Name)
		e.emitNodeLeave(ctx, cp.ThreadID, node.Name, state.CurrentNode)

		if update.Suspends() {
			cp.State = state
			cp.PendingNode = node.Name
			if err := e.save(ctx, cp); err != nil {
				return nil, err
			}
			e.emitSuspend(ctx, cp.ThreadID, node.Name, len(path))
			e.logger.DebugContext(ctx, "thread suspended", "thread_id", cp.ThreadID, "node", node.Name)
			return e.result(cp, before, path, domain.StepSuspended, update.Prompt, ""), nil
		}

		next, err := node.Route(state)
		if err != nil {
			return nil, err
		}
		e.logger.DebugContext(ctx, "transition", "thread_id", cp.ThreadID, "from", node.Name, "to", next)
		current = next
	}
}

func (e *Engine) save(ctx context.Context, cp *domain.Checkpoint) error {
	cp.UpdatedAt = e.now().UTC()
	if err := e.store.Save(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (e *Engine) result(cp *domain.Checkpoint, before domain.ConversationState, path []string, kind domain.StepKind, prompt, terminal string) *domain.StepResult {
	after := cp.State.Clone()
	return &domain.StepResult{
		ThreadID: cp.ThreadID,
		Kind:     kind,
		Prompt:   prompt,
		Terminal: terminal,
		Delta:    domain.Diff(cp.ThreadID, &before, &after),
		Path:     path,
		Version:  cp.Version,
		State:    after,
	}
}
