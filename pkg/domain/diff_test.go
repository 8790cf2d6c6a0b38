package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	base := &ConversationState{
		CurrentNode: "greeting",
		Messages:    []Message{AssistantMessage("hola")},
		Draft:       map[string]string{"plant": "Norte"},
	}

	tests := []struct {
		name string
		old  *ConversationState
		new  *ConversationState
		want *StateDiff
	}{
		{
			name: "initial load",
			old:  nil,
			new:  base,
			want: &StateDiff{
				ThreadID:    "t1",
				CurrentNode: Ptr("greeting"),
				Messages:    []Message{AssistantMessage("hola")},
				Draft:       map[string]string{"plant": "Norte"},
			},
		},
		{
			name: "no changes",
			old:  base,
			new:  base,
			want: nil,
		},
		{
			name: "appended messages and routing marker",
			old:  base,
			new: &ConversationState{
				CurrentNode:      "classify_failed",
				Error:            "classify_failed",
				ClassifyAttempts: 1,
				Messages:         []Message{AssistantMessage("hola"), UserMessage("se cayó la red"), AssistantMessage("otra vez")},
				Draft:            map[string]string{"plant": "Norte"},
			},
			want: &StateDiff{
				ThreadID:         "t1",
				CurrentNode:      Ptr("classify_failed"),
				Error:            Ptr("classify_failed"),
				ClassifyAttempts: Ptr(1),
				Messages:         []Message{UserMessage("se cayó la red"), AssistantMessage("otra vez")},
			},
		},
		{
			name: "draft change and removal",
			old:  base,
			new: &ConversationState{
				CurrentNode: "greeting",
				Messages:    base.Messages,
				Draft:       map[string]string{"line": "L2"},
			},
			want: &StateDiff{
				ThreadID: "t1",
				Draft:    map[string]string{"line": "L2", "plant": ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff("t1", tt.old, tt.new)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiff_JSONOmitsUntouchedFields(t *testing.T) {
	d := Diff("t1", &ConversationState{}, &ConversationState{IncidentID: 7})
	require.NotNil(t, d)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"thread_id":"t1","incident_id":7}`, string(raw))
}
