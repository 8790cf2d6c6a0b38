package runtime

import (
	"context"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

func (e *Engine) base(t domain.EventType, threadID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, ThreadID: threadID}
}

func (e *Engine) emitNodeEnter(ctx context.Context, threadID, node string) {
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{EventBase: e.base(domain.EventNodeEnter, threadID), Node: node})
	}
}

func (e *Engine) emitNodeLeave(ctx context.Context, threadID, node, marker string) {
	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{EventBase: e.base(domain.EventNodeLeave, threadID), Node: node, Marker: marker})
	}
}

func (e *Engine) emitSuspend(ctx context.Context, threadID, node string, steps int) {
	if e.hooks.OnSuspend != nil {
		e.hooks.OnSuspend(ctx, &domain.StepEvent{EventBase: e.base(domain.EventSuspend, threadID), Node: node, Steps: steps})
	}
}

func (e *Engine) emitFinish(ctx context.Context, threadID, terminal string, steps int) {
	if e.hooks.OnFinish != nil {
		e.hooks.OnFinish(ctx, &domain.StepEvent{EventBase: e.base(domain.EventFinish, threadID), Node: terminal, Terminal: terminal, Steps: steps})
	}
}
