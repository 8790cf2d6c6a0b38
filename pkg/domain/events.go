package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter EventType = "node_enter"
	EventNodeLeave EventType = "node_leave"
	EventSuspend   EventType = "suspend"
	EventFinish    EventType = "finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ThreadID  string    `json:"thread_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	Node string `json:"node"`
	// Marker is the routing marker the node left behind (leave events only).
	Marker string `json:"marker,omitempty"`
}

// StepEvent is emitted once per Start/Resume call.
type StepEvent struct {
	EventBase
	Node     string `json:"node"`
	Terminal string `json:"terminal,omitempty"`
	Steps    int    `json:"steps"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnSuspend   func(context.Context, *StepEvent)
	OnFinish    func(context.Context, *StepEvent)
}
