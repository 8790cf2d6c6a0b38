package domain

import "time"

// Checkpoint is the durable representation of a thread.
//
// Version grows with every successful write: zero means the thread has no
// live checkpoint. Stores compare it on save and bump it on success. It never
// restarts, not even after Delete, so a writer holding a checkpoint from before
// a reset always loses.
type Checkpoint struct {
	ThreadID    string            `json:"thread_id" yaml:"thread_id"`
	State       ConversationState `json:"state" yaml:"state"`
	PendingNode string            `json:"pending_node,omitempty" yaml:"pending_node,omitempty"`
	Version     int64             `json:"version" yaml:"version"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"updated_at"`
}

// NewCheckpoint creates an unsaved checkpoint for a thread.
func NewCheckpoint(threadID string, state ConversationState) *Checkpoint {
	return &Checkpoint{
		ThreadID: threadID,
		State:    state,
	}
}

// Active reports whether the thread is waiting for input.
func (c *Checkpoint) Active() bool {
	return c != nil && c.PendingNode != ""
}

// Clone returns a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.State = c.State.Clone()
	return &out
}
