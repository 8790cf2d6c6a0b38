package domain

// StepKind discriminates a StepResult.
type StepKind string

const (
	StepSuspended StepKind = "suspended"
	StepFinished  StepKind = "finished"
)

// FallbackReply is shown when a step produced no assistant message.
const FallbackReply = "No pude generar una respuesta. Intenta de nuevo."

// StepResult is what Start and Resume return.
// Prompt is set when Kind is StepSuspended, Terminal when it is StepFinished.
type StepResult struct {
	ThreadID string   `json:"thread_id"`
	Kind     StepKind `json:"kind"`
	Prompt   string   `json:"prompt,omitempty"`
	Terminal string   `json:"terminal,omitempty"`

	// Delta holds what changed since the call began.
	Delta *StateDiff `json:"delta,omitempty"`
	// Path lists the nodes executed during the call, in order.
	Path    []string `json:"path"`
	Version int64    `json:"version"`

	// State is the snapshot that was persisted.
	State ConversationState `json:"-"`
}

// Suspended reports whether the thread waits for input.
func (r *StepResult) Suspended() bool {
	return r.Kind == StepSuspended
}

// Finished reports whether a terminal was reached.
func (r *StepResult) Finished() bool {
	return r.Kind == StepFinished
}

// Reply extracts the last assistant message produced during the call.
func (r *StepResult) Reply() string {
	if r.Delta != nil {
		for i := len(r.Delta.Messages) - 1; i >= 0; i-- {
			m := r.Delta.Messages[i]
			if m.Role == RoleAssistant && m.Content != "" {
				return m.Content
			}
		}
	}
	return FallbackReply
}
