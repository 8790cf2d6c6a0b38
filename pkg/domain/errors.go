package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCheckpointNotFound is returned by stores when a thread has no checkpoint.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrStaleCheckpoint is returned when a save lost a compare-and-swap race.
	ErrStaleCheckpoint = errors.New("stale checkpoint")

	// ErrNoActiveThread is returned when resuming a thread that is not suspended.
	ErrNoActiveThread = errors.New("no active thread")

	// ErrInvalidGraph is returned when a graph fails compile-time validation.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrUnknownNode is returned when a router yields a name it never declared.
	ErrUnknownNode = errors.New("unknown node")

	// ErrStepLimit is returned when a run exceeds the configured step budget.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrInvalidRecord is returned when a domain record fails validation.
	ErrInvalidRecord = errors.New("invalid record")
)

// GraphError lists every problem found while compiling a graph.
type GraphError struct {
	Problems []string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("invalid graph: %d problem(s):\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

func (e *GraphError) Unwrap() error {
	return ErrInvalidGraph
}

// RecordError reports the field that made a record invalid.
type RecordError struct {
	Field string
	Value string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid value %q for field %s", e.Value, e.Field)
}

func (e *RecordError) Unwrap() error {
	return ErrInvalidRecord
}
