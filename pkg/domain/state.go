package domain

// Message roles recorded in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry of the append-only conversation log.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a message sent by the actor.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds a message shown to the actor.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SystemMessage builds a message that is kept in the log but never shown.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Candidate is one classification proposal returned by the text service.
type Candidate struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// ConversationState is the typed snapshot owned by one thread.
//
// Every field has a declared merge rule, applied by Apply:
//   - Messages, Media: append-only.
//   - Draft: key-wise overwrite.
//   - ClassifyAttempts: reset to zero when a new description opens a new
//     attempt cycle (no outstanding Error), kept otherwise.
//   - RetryAttempts: incremented by an update with Retry set, reset to zero
//     by any other update that writes CurrentNode.
//   - Everything else: last write wins.
type ConversationState struct {
	Messages []Message `json:"messages"`

	UserPhone string       `json:"user_phone"`
	Profile   *UserProfile `json:"user_profile,omitempty"`

	// Draft is the partially built incident record.
	Draft map[string]string `json:"current_incident"`

	Candidates    []Candidate `json:"classification_candidates,omitempty"`
	SelectedCode  string      `json:"selected_code,omitempty"`
	MissingFields []string    `json:"missing_fields,omitempty"`
	CurrentField  string      `json:"current_field,omitempty"`
	Confirmed     *bool       `json:"confirmed,omitempty"`

	// CurrentNode is the routing marker written by the last node.
	CurrentNode string `json:"current_node"`
	// Error is empty when no failure is outstanding.
	Error string `json:"error,omitempty"`

	Description      string     `json:"user_description,omitempty"`
	Media            []MediaRef `json:"media_attachments,omitempty"`
	ClassifyAttempts int        `json:"classify_attempts"`
	RetryAttempts    int        `json:"retry_attempts"`
	IncidentID       int64      `json:"incident_id,omitempty"`
}

// NewConversationState creates a clean state for the given actor.
func NewConversationState(phone string) ConversationState {
	return ConversationState{
		UserPhone: phone,
		Draft:     map[string]string{},
	}
}

// Update is what a node returns. Zero values mean "untouched".
type Update struct {
	Messages []Message
	Profile  *UserProfile
	Draft    map[string]string

	Candidates    *[]Candidate
	SelectedCode  *string
	MissingFields *[]string
	CurrentField  *string
	Confirmed     *bool

	CurrentNode string
	Error       string
	ClearError  bool

	Description *string
	Media       []MediaRef

	// ClassifyFailed records one failed classification attempt.
	ClassifyFailed bool
	// Retry records one unusable answer to the question being asked.
	Retry      bool
	IncidentID int64

	// Prompt requests suspension: the engine stops after merging this update
	// and waits for input bound to the emitting node.
	Prompt string
}

// Suspends reports whether the update requests suspension.
func (u Update) Suspends() bool {
	return u.Prompt != ""
}

// Apply merges u into s following the per-field rules.
func (s *ConversationState) Apply(u Update) {
	s.Messages = append(s.Messages, u.Messages...)

	if u.Profile != nil {
		p := *u.Profile
		s.Profile = &p
	}
	if len(u.Draft) > 0 {
		if s.Draft == nil {
			s.Draft = make(map[string]string, len(u.Draft))
		}
		for k, v := range u.Draft {
			s.Draft[k] = v
		}
	}
	if u.Candidates != nil {
		s.Candidates = append([]Candidate(nil), (*u.Candidates)...)
	}
	if u.SelectedCode != nil {
		s.SelectedCode = *u.SelectedCode
	}
	if u.MissingFields != nil {
		s.MissingFields = append([]string(nil), (*u.MissingFields)...)
	}
	if u.CurrentField != nil {
		s.CurrentField = *u.CurrentField
	}
	if u.Confirmed != nil {
		c := *u.Confirmed
		s.Confirmed = &c
	}
	if u.CurrentNode != "" {
		s.CurrentNode = u.CurrentNode
	}
	switch {
	case u.Retry:
		s.RetryAttempts++
	case u.CurrentNode != "":
		s.RetryAttempts = 0
	}

	// Description is merged before the error marker so a retry keeps its count.
	if u.Description != nil {
		if s.Error == "" {
			s.ClassifyAttempts = 0
		}
		s.Description = *u.Description
	}
	if u.ClassifyFailed {
		s.ClassifyAttempts++
	}

	switch {
	case u.Error != "":
		s.Error = u.Error
	case u.ClearError:
		s.Error = ""
	}

	s.Media = append(s.Media, u.Media...)
	if u.IncidentID != 0 {
		s.IncidentID = u.IncidentID
	}
}

// Clone returns a deep copy of the state.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	out.Draft = make(map[string]string, len(s.Draft))
	for k, v := range s.Draft {
		out.Draft[k] = v
	}
	out.Candidates = append([]Candidate(nil), s.Candidates...)
	out.MissingFields = append([]string(nil), s.MissingFields...)
	if s.Confirmed != nil {
		c := *s.Confirmed
		out.Confirmed = &c
	}
	out.Media = append([]MediaRef(nil), s.Media...)
	return out
}

// LastAssistantMessage returns the most recent message meant for the actor.
func (s ConversationState) LastAssistantMessage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant && s.Messages[i].Content != "" {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// Ptr returns a pointer to v. Handy for building updates.
func Ptr[T any](v T) *T {
	return &v
}
