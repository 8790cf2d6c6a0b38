package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/intake"
	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/JonathanLopez0327/chat-demo/pkg/session"
	"github.com/google/uuid"
)

// ErrorReply is what transports show when Handle fails.
const ErrorReply = "Ocurrió un error procesando tu mensaje. Intenta de nuevo."

// ErrEmptyInput is returned for messages with neither text nor media.
var ErrEmptyInput = errors.New("empty input")

// Runner is the engine surface the adapter drives.
type Runner interface {
	Start(ctx context.Context, threadID string, seed domain.ConversationState) (*domain.StepResult, error)
	Resume(ctx context.Context, threadID string, input domain.Input) (*domain.StepResult, error)
}

// Adapter routes actor messages into the engine, one thread per actor.
type Adapter struct {
	engine   Runner
	sessions *session.Manager
	repo     ports.Repository

	logger     *slog.Logger
	maxInput   int
	dbAttempts int
	dbBackoff  time.Duration
	isGreeting func(string) bool
	now        func() time.Time
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithMaxInput overrides DefaultMaxInput.
func WithMaxInput(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxInput = n
		}
	}
}

// WithDBRetry sets the attempts and the linear backoff step used when the
// repository reports contention.
func WithDBRetry(attempts int, backoff time.Duration) Option {
	return func(a *Adapter) {
		if attempts > 0 {
			a.dbAttempts = attempts
		}
		if backoff >= 0 {
			a.dbBackoff = backoff
		}
	}
}

// WithClock overrides time.Now for conversation rows.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Adapter.
func New(engine Runner, sessions *session.Manager, repo ports.Repository, opts ...Option) *Adapter {
	a := &Adapter{
		engine:     engine,
		sessions:   sessions,
		repo:       repo,
		logger:     logging.NewNop(),
		maxInput:   DefaultMaxInput,
		dbAttempts: 3,
		dbBackoff:  300 * time.Millisecond,
		isGreeting: intake.IsGreeting,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle processes one inbound message and returns the reply text.
func (a *Adapter) Handle(ctx context.Context, threadID string, in domain.Input) (string, error) {
	in.Text = Sanitize(in.Text, a.maxInput)
	if reply, ok := a.command(ctx, threadID, in.Text); ok {
		return reply, nil
	}
	if in.Empty() {
		return "", ErrEmptyInput
	}

	var (
		res     *domain.StepResult
		started bool
	)
	err := a.sessions.Do(ctx, threadID, func(ctx context.Context) error {
		var err error
		res, started, err = a.step(ctx, threadID, in)
		if err != nil {
			return err
		}
		if res.Suspended() {
			a.sessions.MarkActive(threadID)
		} else {
			a.sessions.Invalidate(threadID)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("thread %s: %w", threadID, err)
	}

	reply := res.Reply()
	a.track(ctx, threadID, in, reply, res, started)
	return reply, nil
}

// step starts or resumes the thread. A new thread greeted with plain chitchat
// only gets the entry output; any other first message is fed in right away.
func (a *Adapter) step(ctx context.Context, threadID string, in domain.Input) (*domain.StepResult, bool, error) {
	active, err := a.sessions.IsActive(ctx, threadID)
	if err != nil {
		return nil, false, fmt.Errorf("check thread: %w", err)
	}
	if active {
		res, err := a.engine.Resume(ctx, threadID, in)
		if !errors.Is(err, domain.ErrNoActiveThread) {
			return res, false, err
		}
		a.logger.DebugContext(ctx, "cached thread no longer active", "thread_id", threadID)
		a.sessions.Invalidate(threadID)
	}

	res, err := a.engine.Start(ctx, threadID, domain.NewConversationState(threadID))
	if err != nil {
		return nil, true, err
	}
	if !res.Suspended() || (a.isGreeting(in.Text) && len(in.Media) == 0) {
		return res, true, nil
	}
	res, err = a.engine.Resume(ctx, threadID, in)
	return res, true, err
}

// track updates the conversation row and log. Failures are logged only: the
// actor already has a reply and the checkpoint is saved.
func (a *Adapter) track(ctx context.Context, threadID string, in domain.Input, reply string, res *domain.StepResult, started bool) {
	err := a.retryDB(ctx, func(ctx context.Context) error {
		conv, err := a.conversation(ctx, threadID, started)
		if err != nil {
			return err
		}
		lines := []domain.LogEntry{
			{ThreadID: threadID, Role: domain.RoleUser, Content: loggedText(in), ConversationID: conv.ID, CreatedAt: a.now()},
			{ThreadID: threadID, Role: domain.RoleAssistant, Content: reply, ConversationID: conv.ID, CreatedAt: a.now()},
		}
		for _, line := range lines {
			if err := a.repo.AppendLog(ctx, line); err != nil {
				return fmt.Errorf("append log: %w", err)
			}
		}
		if err := a.repo.IncrementMessages(ctx, conv.ID, len(lines)); err != nil {
			return fmt.Errorf("count messages: %w", err)
		}
		if res.Finished() {
			status, outcome := outcomeOf(res.Terminal)
			if err := a.repo.FinishConversation(ctx, conv.ID, status, outcome, res.State.IncidentID); err != nil {
				return fmt.Errorf("finish conversation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		a.logger.WarnContext(ctx, "conversation tracking failed", "thread_id", threadID, "err", err)
	}
}

// conversation returns the row for this message, opening one for a new thread.
func (a *Adapter) conversation(ctx context.Context, threadID string, started bool) (*domain.Conversation, error) {
	if !started {
		conv, err := a.repo.ActiveConversation(ctx, threadID)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return nil, fmt.Errorf("active conversation: %w", err)
		}
	} else if err := closeActive(ctx, a.repo, threadID, domain.ConversationCancelled, "Sesión reemplazada", 0); err != nil {
		return nil, err
	}

	conv := domain.Conversation{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		StartedAt: a.now(),
		Status:    domain.ConversationActive,
	}
	if err := a.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

func outcomeOf(terminal string) (domain.ConversationStatus, string) {
	switch terminal {
	case intake.TerminalSaved:
		return domain.ConversationCompleted, "Incidente creado"
	case intake.TerminalCancelled:
		return domain.ConversationCancelled, "Reporte cancelado"
	case intake.TerminalUnhandled:
		return domain.ConversationCompleted, "Incidente no clasificado"
	case intake.TerminalError:
		return domain.ConversationCompleted, "Error al crear el registro"
	default:
		return domain.ConversationCompleted, "Conversación completada"
	}
}

func loggedText(in domain.Input) string {
	if in.Text != "" || len(in.Media) == 0 {
		return in.Text
	}
	kinds := make([]string, 0, len(in.Media))
	for _, m := range in.Media {
		kinds = append(kinds, "["+m.Type+"]")
	}
	return strings.Join(kinds, " ")
}
