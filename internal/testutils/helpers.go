package testutils

import (
	"context"
	"sync"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

// TextService is a scripted ports.TextService that counts its calls.
type TextService struct {
	mu sync.Mutex

	Profile    ports.ProfileFields
	ProfileErr error

	Unsafe       bool
	UnsafeReason string
	SafetyErr    error

	// Results are returned by Classify in order; the last one repeats.
	Results     []ports.Classification
	ClassifyErr error
	// OnClassify, when set, runs on every Classify call with its 1-based
	// call number, outside the lock.
	OnClassify func(call int)

	Selection    int
	SelectionErr error

	calls map[string]int
}

var _ ports.TextService = (*TextService)(nil)

// NewTextService returns a fake that classifies everything as result.
func NewTextService(results ...ports.Classification) *TextService {
	return &TextService{Results: results, calls: make(map[string]int)}
}

// Classification builds a ranked result from code/confidence pairs.
func Classification(cands ...domain.Candidate) ports.Classification {
	return ports.Classification{Candidates: cands}
}

// Candidate builds a candidate with a canned reason.
func Candidate(code, name string, confidence float64) domain.Candidate {
	return domain.Candidate{Code: code, Name: name, Confidence: confidence, Reason: "coincide con la descripción"}
}

// Calls returns how many times method was invoked.
func (f *TextService) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *TextService) record(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
	return f.calls[method]
}

func (f *TextService) Classify(_ context.Context, _, _ string) (ports.Classification, error) {
	n := f.record("Classify")
	if f.OnClassify != nil {
		f.OnClassify(n)
	}
	if f.ClassifyErr != nil {
		return ports.Classification{}, f.ClassifyErr
	}
	if len(f.Results) == 0 {
		return ports.Classification{}, nil
	}
	if n > len(f.Results) {
		n = len(f.Results)
	}
	return f.Results[n-1], nil
}

func (f *TextService) SafetyCheck(_ context.Context, _ string, _ []string) (ports.Safety, error) {
	f.record("SafetyCheck")
	if f.SafetyErr != nil {
		return ports.Safety{}, f.SafetyErr
	}
	if f.Unsafe {
		return ports.Safety{Safe: false, Reason: f.UnsafeReason}, nil
	}
	return ports.Safety{Safe: true}, nil
}

func (f *TextService) ExtractProfile(_ context.Context, raw string) (ports.ProfileFields, error) {
	f.record("ExtractProfile")
	if f.ProfileErr != nil {
		return ports.ProfileFields{}, f.ProfileErr
	}
	if f.Profile.Name == "" && f.Profile.Shift == "" {
		return ports.ProfileFields{Name: raw}, nil
	}
	return f.Profile, nil
}

func (f *TextService) InterpretSelection(_ context.Context, _ string, _ []domain.Candidate) (int, error) {
	f.record("InterpretSelection")
	return f.Selection, f.SelectionErr
}

// MediaService is a fake ports.MediaService returning fixed text.
type MediaService struct {
	Transcription string
	Description   string
	Err           error
}

var _ ports.MediaService = (*MediaService)(nil)

func (m *MediaService) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return m.Transcription, m.Err
}

func (m *MediaService) DescribeImage(_ context.Context, _ []byte, _, _ string) (string, error) {
	return m.Description, m.Err
}

// Sender records outbound messages.
type Sender struct {
	mu   sync.Mutex
	Sent []Outbound
	Err  error
}

// Outbound is one message handed to Sender.
type Outbound struct {
	To   string
	Body string
}

var _ ports.Sender = (*Sender)(nil)

func (s *Sender) Send(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, Outbound{To: to, Body: body})
	return nil
}

// Messages returns a copy of what was sent.
func (s *Sender) Messages() []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outbound(nil), s.Sent...)
}
