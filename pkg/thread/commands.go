package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/JonathanLopez0327/chat-demo/pkg/session"
)

const (
	replyReset      = "Conversación reiniciada. Puedes empezar de nuevo enviando un mensaje."
	replyErased     = "Tu perfil y conversación han sido eliminados. Si envías un nuevo mensaje, comenzarás desde cero."
	replyUserErased = "Tu perfil ha sido eliminado de la base de datos. La conversación actual sigue activa."
	replyHelp       = "Comandos disponibles:\n" +
		"  /reset — Reiniciar la conversación actual\n" +
		"  /borrar — Eliminar tu perfil y reiniciar el chat\n" +
		"  /eliminar_usuario — Eliminar solo tu perfil de la BD\n" +
		"  /ayuda — Mostrar esta lista de comandos"
	replyCommandFailed = "Error interno al procesar el comando. Intenta de nuevo."
)

// command runs text as an admin command. ok is false when text is not one.
func (a *Adapter) command(ctx context.Context, threadID, text string) (reply string, ok bool) {
	stripped := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(stripped, "/") {
		return "", false
	}
	cmd := strings.Fields(stripped)[0]
	a.logger.InfoContext(ctx, "admin command", "thread_id", threadID, "command", cmd)

	var run func(context.Context) error
	switch cmd {
	case "/reset":
		reply = replyReset
		run = func(ctx context.Context) error { return a.reset(ctx, threadID, "Reset por usuario") }
	case "/borrar":
		reply = replyErased
		run = func(ctx context.Context) error {
			if err := a.reset(ctx, threadID, "Borrado por usuario"); err != nil {
				return err
			}
			return a.eraseUser(ctx, threadID)
		}
	case "/eliminar_usuario":
		reply = replyUserErased
		run = func(ctx context.Context) error { return a.eraseUser(ctx, threadID) }
	case "/ayuda":
		return replyHelp, true
	default:
		return fmt.Sprintf("Comando desconocido: %s\nEnvía /ayuda para ver los comandos disponibles.", cmd), true
	}

	if err := a.retryDB(ctx, run); err != nil {
		a.logger.ErrorContext(ctx, "admin command failed", "thread_id", threadID, "command", cmd, "err", err)
		return replyCommandFailed, true
	}
	return reply, true
}

// Reset cancels the active conversation and discards the thread checkpoint
// and log. The next message starts from the entry node.
func (a *Adapter) Reset(ctx context.Context, threadID string) error {
	return a.retryDB(ctx, func(ctx context.Context) error {
		return a.reset(ctx, threadID, "Reset por administrador")
	})
}

func (a *Adapter) reset(ctx context.Context, threadID, outcome string) error {
	if err := Reset(ctx, a.sessions, a.repo, threadID, outcome); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "thread reset", "thread_id", threadID)
	return nil
}

// Reset closes the active conversation of threadID as cancelled with the
// given outcome, deletes its checkpoint under the thread lock and drops its
// log. Admin tools without a running bot use it directly.
func Reset(ctx context.Context, sessions *session.Manager, repo ports.Repository, threadID, outcome string) error {
	if err := closeActive(ctx, repo, threadID, domain.ConversationCancelled, outcome, 0); err != nil {
		return err
	}
	if err := sessions.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	if err := repo.DeleteLog(ctx, threadID); err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	return nil
}

func (a *Adapter) eraseUser(ctx context.Context, threadID string) error {
	n, err := a.repo.DeleteIncidentsByUser(ctx, threadID)
	if err != nil {
		return fmt.Errorf("delete incidents: %w", err)
	}
	if err := a.repo.DeleteUser(ctx, threadID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	a.logger.InfoContext(ctx, "user erased", "thread_id", threadID, "incidents", n)
	return nil
}

// closeActive finishes the thread's active conversation, if any.
func closeActive(ctx context.Context, repo ports.Repository, threadID string, status domain.ConversationStatus, outcome string, incidentID int64) error {
	conv, err := repo.ActiveConversation(ctx, threadID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("active conversation: %w", err)
	}
	if err := repo.FinishConversation(ctx, conv.ID, status, outcome, incidentID); err != nil {
		return fmt.Errorf("finish conversation: %w", err)
	}
	return nil
}

// retryDB reruns fn while the repository reports contention.
func (a *Adapter) retryDB(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < a.dbAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, ports.ErrContention) {
			return err
		}
		if attempt == a.dbAttempts-1 {
			break
		}
		wait := a.dbBackoff * time.Duration(attempt+1)
		a.logger.WarnContext(ctx, "storage busy, retrying", "attempt", attempt+1, "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
