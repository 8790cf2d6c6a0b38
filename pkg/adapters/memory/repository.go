package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository implements ports.Repository in memory.
// It backs the chat REPL and tests. Safe for concurrent use.
type Repository struct {
	mu sync.RWMutex

	users         map[string]domain.UserProfile
	incidents     []domain.IncidentRecord
	attachments   []domain.Attachment
	conversations map[string]*domain.Conversation
	logs          []domain.LogEntry

	nextIncident   int64
	nextAttachment int64
	nextLog        int64
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		users:         make(map[string]domain.UserProfile),
		conversations: make(map[string]*domain.Conversation),
	}
}

func (r *Repository) UpsertUser(ctx context.Context, u domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.users[u.PhoneNumber]; ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.users[u.PhoneNumber] = u
	return nil
}

func (r *Repository) GetUser(ctx context.Context, phone string) (*domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[phone]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &u, nil
}

func (r *Repository) DeleteUser(ctx context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, phone)
	return nil
}

func (r *Repository) SaveIncident(ctx context.Context, rec domain.IncidentRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.StepKey != "" {
		for _, existing := range r.incidents {
			if existing.StepKey == rec.StepKey {
				return existing.ID, ports.ErrDuplicate
			}
		}
	}

	r.nextIncident++
	rec.ID = r.nextIncident
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.incidents = append(r.incidents, rec)
	return rec.ID, nil
}

// RecentIncidents returns the newest incidents first.
func (r *Repository) RecentIncidents(ctx context.Context, phone string, limit int) ([]domain.IncidentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.IncidentRecord
	for _, rec := range r.incidents {
		if rec.ReportedBy == phone {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) DeleteIncidentsByUser(ctx context.Context, phone string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make(map[int64]bool)
	kept := r.incidents[:0]
	for _, rec := range r.incidents {
		if rec.ReportedBy == phone {
			removed[rec.ID] = true
			continue
		}
		kept = append(kept, rec)
	}
	r.incidents = kept

	attachments := r.attachments[:0]
	for _, a := range r.attachments {
		if !removed[a.IncidentID] {
			attachments = append(attachments, a)
		}
	}
	r.attachments = attachments
	return int64(len(removed)), nil
}

func (r *Repository) SaveAttachment(ctx context.Context, a domain.Attachment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextAttachment++
	a.ID = r.nextAttachment
	r.attachments = append(r.attachments, a)
	return a.ID, nil
}

// Attachments returns the attachments of one incident.
func (r *Repository) Attachments(incidentID int64) []domain.Attachment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Attachment
	for _, a := range r.attachments {
		if a.IncidentID == incidentID {
			out = append(out, a)
		}
	}
	return out
}

func (r *Repository) AppendLog(ctx context.Context, e domain.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextLog++
	e.ID = r.nextLog
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.logs = append(r.logs, e)
	return nil
}

// Log returns the logged lines of a thread in order.
func (r *Repository) Log(threadID string) []domain.LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.LogEntry
	for _, e := range r.logs {
		if e.ThreadID == threadID {
			out = append(out, e)
		}
	}
	return out
}

func (r *Repository) DeleteLog(ctx context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.logs[:0]
	for _, e := range r.logs {
		if e.ThreadID != threadID {
			kept = append(kept, e)
		}
	}
	r.logs = kept
	return nil
}

func (r *Repository) CreateConversation(ctx context.Context, c domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conversations[c.ID] = &c
	return nil
}

// ActiveConversation returns the most recently started active conversation.
func (r *Repository) ActiveConversation(ctx context.Context, threadID string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.Conversation
	for _, c := range r.conversations {
		if c.ThreadID != threadID || c.Status != domain.ConversationActive {
			continue
		}
		if found == nil || c.StartedAt.After(found.StartedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, ports.ErrNotFound
	}
	out := *found
	return &out, nil
}

// Conversation looks a conversation up by id.
func (r *Repository) Conversation(id string) (domain.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return domain.Conversation{}, false
	}
	return *c, true
}

func (r *Repository) FinishConversation(ctx context.Context, id string, status domain.ConversationStatus, outcome string, incidentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return ports.ErrNotFound
	}
	now := time.Now().UTC()
	c.Status = status
	c.Outcome = outcome
	c.EndedAt = &now
	if incidentID != 0 {
		c.IncidentID = incidentID
	}
	return nil
}

func (r *Repository) IncrementMessages(ctx context.Context, id string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return ports.ErrNotFound
	}
	c.TotalMessages += n
	return nil
}
