package runtime

import (
	"log/slog"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// DefaultMaxSteps bounds the nodes executed by one Start or Resume call.
const DefaultMaxSteps = 64

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxSteps overrides DefaultMaxSteps. Non-positive values are ignored.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithClock overrides time.Now for checkpoint timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
