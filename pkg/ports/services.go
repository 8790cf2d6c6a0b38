package ports

import (
	"context"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// Classification is the ranked output of TextService.Classify.
type Classification struct {
	Candidates []domain.Candidate `json:"candidates"`
}

// Top returns the best candidate, if any.
func (c Classification) Top() (domain.Candidate, bool) {
	if len(c.Candidates) == 0 {
		return domain.Candidate{}, false
	}
	best := c.Candidates[0]
	for _, cand := range c.Candidates[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}
	return best, true
}

// Safety is the verdict of TextService.SafetyCheck.
type Safety struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// ProfileFields is what ExtractProfile pulls out of free text.
type ProfileFields struct {
	Name  string `json:"name"`
	Area  string `json:"area,omitempty"`
	Shift string `json:"shift,omitempty"`
	Role  string `json:"role,omitempty"`
	Line  string `json:"line,omitempty"`
}

// TextService understands natural-language text. Nodes use it; the engine never does.
type TextService interface {
	Classify(ctx context.Context, description, catalog string) (Classification, error)
	SafetyCheck(ctx context.Context, description string, media []string) (Safety, error)
	ExtractProfile(ctx context.Context, raw string) (ProfileFields, error)
	// InterpretSelection maps a free answer to a 1-based candidate index.
	// Zero means "none of them"; a negative value means it could not tell.
	InterpretSelection(ctx context.Context, answer string, candidates []domain.Candidate) (int, error)
}

// MediaService turns attachments into text.
type MediaService interface {
	Transcribe(ctx context.Context, audio []byte, mime string) (string, error)
	DescribeImage(ctx context.Context, image []byte, mime, caption string) (string, error)
}

// Sender delivers outbound text to an actor.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}
