package ports

import (
	"context"
	"errors"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// ErrContention is returned by repositories when the backend is temporarily
// busy and the operation may succeed if retried.
var ErrContention = errors.New("storage contention")

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by SaveIncident, together with the id of the
// existing row, when an incident with the same StepKey was already saved.
var ErrDuplicate = errors.New("duplicate")

// UserRepository stores registered actors.
type UserRepository interface {
	UpsertUser(ctx context.Context, u domain.UserProfile) error
	// GetUser returns ErrNotFound for unknown phones.
	GetUser(ctx context.Context, phone string) (*domain.UserProfile, error)
	DeleteUser(ctx context.Context, phone string) error
}

// IncidentRepository stores saved incidents and their attachments.
type IncidentRepository interface {
	// SaveIncident returns the new id. A repeated non-empty rec.StepKey
	// returns the first id and ErrDuplicate.
	SaveIncident(ctx context.Context, rec domain.IncidentRecord) (int64, error)
	RecentIncidents(ctx context.Context, phone string, limit int) ([]domain.IncidentRecord, error)
	DeleteIncidentsByUser(ctx context.Context, phone string) (int64, error)
	SaveAttachment(ctx context.Context, a domain.Attachment) (int64, error)
}

// ConversationRepository tracks conversations and their message log.
type ConversationRepository interface {
	AppendLog(ctx context.Context, e domain.LogEntry) error
	DeleteLog(ctx context.Context, threadID string) error

	CreateConversation(ctx context.Context, c domain.Conversation) error
	// ActiveConversation returns ErrNotFound when the thread has none.
	ActiveConversation(ctx context.Context, threadID string) (*domain.Conversation, error)
	FinishConversation(ctx context.Context, id string, status domain.ConversationStatus, outcome string, incidentID int64) error
	IncrementMessages(ctx context.Context, id string, n int) error
}

// Repository is the full domain persistence surface.
type Repository interface {
	UserRepository
	IncidentRepository
	ConversationRepository
}
