package domain

import (
	"reflect"
)

// StateDiff represents the changes between two conversation states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// ThreadID is always present to identify the target.
	ThreadID string `json:"thread_id"`

	CurrentNode *string `json:"current_node,omitempty"`
	Error       *string `json:"error,omitempty"`

	// Messages holds the entries appended to the log.
	Messages []Message `json:"messages,omitempty"`

	// Draft contains only changed or added keys.
	// For deletions, the key is present with an empty value.
	Draft map[string]string `json:"draft,omitempty"`

	// Media holds the attachments appended during the step.
	Media []MediaRef `json:"media,omitempty"`

	ClassifyAttempts *int   `json:"classify_attempts,omitempty"`
	IncidentID       *int64 `json:"incident_id,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(threadID string, oldState, newState *ConversationState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{ThreadID: threadID}
	if oldState == nil {
		oldState = &ConversationState{}
	}

	if oldState.CurrentNode != newState.CurrentNode {
		diff.CurrentNode = &newState.CurrentNode
	}
	if oldState.Error != newState.Error {
		diff.Error = &newState.Error
	}
	if oldState.ClassifyAttempts != newState.ClassifyAttempts {
		diff.ClassifyAttempts = &newState.ClassifyAttempts
	}
	if oldState.IncidentID != newState.IncidentID {
		diff.IncidentID = &newState.IncidentID
	}

	diff.Messages = appended(oldState.Messages, newState.Messages)
	diff.Media = appended(oldState.Media, newState.Media)
	diff.Draft = diffDraft(oldState.Draft, newState.Draft)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// appended assumes append-only growth and returns the new tail.
func appended[T any](old, new []T) []T {
	if len(new) <= len(old) {
		return nil
	}
	return append([]T(nil), new[len(old):]...)
}

func diffDraft(old, new map[string]string) map[string]string {
	delta := make(map[string]string)

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = ""
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentNode == nil &&
		d.Error == nil &&
		d.ClassifyAttempts == nil &&
		d.IncidentID == nil &&
		len(d.Messages) == 0 &&
		len(d.Media) == 0 &&
		len(d.Draft) == 0
}
