package domain

import (
	"context"
	"fmt"
	"time"
)

// Step identifies one engine run by the checkpoint it started from. Two
// replicas racing on the same checkpoint compute the same Step, so side
// effects keyed on it collapse into one.
type Step struct {
	ThreadID string
	Version  int64
	// LoadedAt is the UpdatedAt of that checkpoint. It tells apart runs of a
	// thread whose versions restarted after its checkpoint expired.
	LoadedAt time.Time
}

// Key is the idempotency key of the step.
func (s Step) Key() string {
	return fmt.Sprintf("%s:%d:%d", s.ThreadID, s.Version, s.LoadedAt.UnixNano())
}

type stepKey struct{}

// WithStep returns a context carrying s.
func WithStep(ctx context.Context, s Step) context.Context {
	return context.WithValue(ctx, stepKey{}, s)
}

// StepFromContext returns the step of the running engine, if any.
func StepFromContext(ctx context.Context) (Step, bool) {
	s, ok := ctx.Value(stepKey{}).(Step)
	return s, ok
}
