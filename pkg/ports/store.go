package ports

import (
	"context"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// CheckpointStore persists the checkpoint of each thread.
// This is what makes a suspended conversation survive restarts and replicas.
type CheckpointStore interface {
	// Load retrieves the checkpoint for a thread.
	// Returns domain.ErrCheckpointNotFound if the thread has none.
	Load(ctx context.Context, threadID string) (*domain.Checkpoint, error)

	// Save writes cp if the stored version still equals cp.Version.
	// On success cp.Version is incremented. A lost race returns
	// domain.ErrStaleCheckpoint and leaves the stored value untouched.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Delete removes the checkpoint. Deleting a missing thread is not an error.
	Delete(ctx context.Context, threadID string) error

	// List returns the ids of every stored thread.
	List(ctx context.Context) ([]string, error)
}
