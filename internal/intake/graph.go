package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

// Variant selects the routing table.
type Variant string

const (
	// VariantDirect saves on a confident classification and gives up after
	// a bounded number of failed attempts.
	VariantDirect Variant = "direct"
	// VariantGuided asks the actor to pick a candidate, fill fields and confirm.
	VariantGuided Variant = "guided"
)

// Defaults for the classification policy.
const (
	DefaultThreshold   = 0.8
	DefaultMaxAttempts = 2
	// DefaultMaxRetries bounds consecutive unusable answers at one question.
	DefaultMaxRetries = 3
	recentIncidents   = 5
	// stepOwnerTimeout is how long an incident saved by another run of the
	// same step is waited for before it is adopted.
	stepOwnerTimeout = time.Minute
)

// ParseVariant accepts "direct", "guided" or an empty string (direct).
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "", VariantDirect:
		return VariantDirect, nil
	case VariantGuided:
		return VariantGuided, nil
	default:
		return "", fmt.Errorf("unknown flow variant %q", s)
	}
}

// Deps are the collaborators the nodes call.
type Deps struct {
	Text    ports.TextService
	Repo    ports.Repository
	Catalog *Catalog
}

// Option configures Build.
type Option func(*flow)

// WithVariant selects the routing table.
func WithVariant(v Variant) Option {
	return func(f *flow) {
		if v != "" {
			f.variant = v
		}
	}
}

// WithThreshold sets the minimum confidence for a direct save.
func WithThreshold(t float64) Option {
	return func(f *flow) {
		if t > 0 && t <= 1 {
			f.threshold = t
		}
	}
}

// WithMaxAttempts bounds failed classifications before giving up.
func WithMaxAttempts(n int) Option {
	return func(f *flow) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithMaxRetries bounds consecutive unusable answers to one question.
func WithMaxRetries(n int) Option {
	return func(f *flow) {
		if n > 0 {
			f.maxRetries = n
		}
	}
}

// WithLogger sets the logger used by the nodes.
func WithLogger(logger *slog.Logger) Option {
	return func(f *flow) {
		f.logger = logger
	}
}

// WithClock overrides time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *flow) {
		if now != nil {
			f.now = now
		}
	}
}

// Build compiles the intake graph for the selected variant.
func Build(deps Deps, opts ...Option) (*dsl.Graph, error) {
	if deps.Text == nil || deps.Repo == nil || deps.Catalog == nil {
		return nil, errors.New("intake: text service, repository and catalog are required")
	}
	f := &flow{
		text:        deps.Text,
		repo:        deps.Repo,
		catalog:     deps.Catalog,
		variant:     VariantDirect,
		threshold:   DefaultThreshold,
		maxAttempts: DefaultMaxAttempts,
		maxRetries:  DefaultMaxRetries,
		logger:      logging.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	b := dsl.New(NodeGreeting)
	b.Add(NodeGreeting).
		Run(f.greeting).
		Branch(routeGreeting, NodeRegisterUser, NodeCollectDescription)
	b.Add(NodeRegisterUser).
		Wait(f.registerUser).
		Branch(registerRouter(f.maxRetries), NodeRegisterUser, NodeCollectDescription, TerminalUnhandled)
	b.Add(NodeCollectDescription).
		Wait(f.collectDescription).
		Next(NodeClassify)
	b.Add(NodeSave).
		Run(f.save).
		Branch(routeSave, TerminalSaved, TerminalError)

	switch f.variant {
	case VariantDirect:
		b.Add(NodeClassify).
			Run(f.classifyDirect).
			Branch(classifyRouter(NodeSave, f.maxAttempts), NodeSave, NodeCollectDescription, TerminalUnhandled)
		b.Terminal(TerminalSaved, TerminalUnhandled, TerminalError)

	case VariantGuided:
		b.Add(NodeClassify).
			Run(f.classifyGuided).
			Branch(classifyRouter(NodeConfirmClassification, f.maxAttempts), NodeConfirmClassification, NodeCollectDescription, TerminalUnhandled)
		b.Add(NodeConfirmClassification).
			Wait(f.confirmClassification).
			Branch(selectionRouter(f.maxRetries), NodeCollectFields, NodeCollectDescription, NodeConfirmClassification, TerminalUnhandled)
		b.Add(NodeCollectFields).
			Wait(f.collectFields).
			Branch(routeFields, NodeCollectFields, NodeConfirmation)
		b.Add(NodeConfirmation).
			Run(f.confirmation).
			Next(NodeProcessConfirmation)
		b.Add(NodeProcessConfirmation).
			Wait(f.processConfirmation).
			Branch(routeDecision, NodeSave, NodeEdit, TerminalCancelled)
		b.Add(NodeEdit).
			Wait(f.edit).
			Branch(editRouter(f.maxRetries), NodeCollectFields, NodeEdit, TerminalUnhandled)
		b.Terminal(TerminalSaved, TerminalCancelled, TerminalUnhandled, TerminalError)

	default:
		return nil, fmt.Errorf("unknown flow variant %q", f.variant)
	}

	return b.Compile()
}
