package textai

import (
	"context"
	"errors"
	"testing"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatService returns canned content and keeps the last request.
type mockChatService struct {
	content string
	empty   bool
	err     error
	last    openai.ChatCompletionNewParams
	calls   int
}

func (m *mockChatService) Create(_ context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.calls++
	m.last = params
	if m.err != nil {
		return openai.ChatCompletion{}, m.err
	}
	if m.empty {
		return openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}, nil
	}
	return openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: m.content}},
	}}, nil
}

type mockTranscriber struct {
	text string
	err  error
	last openai.AudioTranscriptionNewParams
}

func (m *mockTranscriber) Transcribe(_ context.Context, params openai.AudioTranscriptionNewParams) (string, error) {
	m.last = params
	return m.text, m.err
}

func testClient(chat *mockChatService) *Client {
	c := newClient(WithModel("test-model"))
	c.chat = chat
	return c
}

func TestNewClient(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	assert.ErrorIs(t, err, ErrNoAPIKey)

	cli, err := NewClient(WithAPIKey("test-key"), WithBaseURL("http://localhost:0/v1"))
	require.NoError(t, err)
	assert.NotNil(t, cli.chat)
	assert.NotNil(t, cli.audio)
	assert.Equal(t, DefaultModel, cli.model)
}

func TestClassify(t *testing.T) {
	chat := &mockChatService{content: "```json\n" +
		`{"candidates":[{"code":" ven-001 ","name":"Sistema de ventas caído","confidence":1.4,"reason":"menciona ventas"},{"code":"","name":"x","confidence":0.2}]}` +
		"\n```"}
	c := testClient(chat)

	out, err := c.Classify(context.Background(), "se cayó el sistema", "# Catálogo")
	require.NoError(t, err)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "VEN-001", out.Candidates[0].Code)
	assert.Equal(t, 1.0, out.Candidates[0].Confidence)
	assert.Equal(t, "test-model", string(chat.last.Model))
	require.Len(t, chat.last.Messages, 1)
}

func TestClassify_Errors(t *testing.T) {
	_, err := testClient(&mockChatService{content: "no sé"}).Classify(context.Background(), "x", "c")
	assert.Error(t, err)

	_, err = testClient(&mockChatService{err: errors.New("service failure")}).Classify(context.Background(), "x", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service failure")

	_, err = testClient(&mockChatService{empty: true}).Classify(context.Background(), "x", "c")
	assert.ErrorIs(t, err, ErrNoChoicesReturned)
}

func TestSafetyCheck(t *testing.T) {
	c := testClient(&mockChatService{content: `{"safe": false, "reason": "publicidad"}`})
	out, err := c.SafetyCheck(context.Background(), "compra ya", []string{"foto de un anuncio"})
	require.NoError(t, err)
	assert.False(t, out.Safe)
	assert.Equal(t, "publicidad", out.Reason)
}

func TestExtractProfile(t *testing.T) {
	c := testClient(&mockChatService{content: `{"name":"Juan Pérez","area":"","shift":"mañana","line":"","role":""}`})
	out, err := c.ExtractProfile(context.Background(), "Juan Pérez, turno mañana")
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez", out.Name)
	assert.Equal(t, "mañana", out.Shift)

	c = testClient(&mockChatService{content: "Juan"})
	out, err = c.ExtractProfile(context.Background(), "  Juan  ")
	require.NoError(t, err)
	assert.Equal(t, "Juan", out.Name)
}

func TestInterpretSelection(t *testing.T) {
	cands := []domain.Candidate{{Code: "A-001", Name: "A"}, {Code: "B-001", Name: "B"}}
	tests := map[string]int{"2": 2, " 1. ": 1, "3": -1, "'ninguno'": 0, "no_se": -1}
	for content, want := range tests {
		c := testClient(&mockChatService{content: content})
		got, err := c.InterpretSelection(context.Background(), "la segunda", cands)
		require.NoError(t, err)
		assert.Equal(t, want, got, content)
	}
}

func TestRenderSelectionPrompt(t *testing.T) {
	out, err := render("selection", map[string]any{
		"Answer":     "la de la impresora",
		"Candidates": []domain.Candidate{{Code: "IMP-001", Name: "Impresora"}, {Code: "POS-001", Name: "POS"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "1. IMP-001 – Impresora")
	assert.Contains(t, out, "2. POS-001 – POS")
}

func TestTranscribe(t *testing.T) {
	c := newClient()
	tr := &mockTranscriber{text: " no hay sistema \n"}
	c.audio = tr

	text, err := c.Transcribe(context.Background(), []byte("ogg"), "audio/ogg; codecs=opus")
	require.NoError(t, err)
	assert.Equal(t, "no hay sistema", text)
	assert.Equal(t, DefaultWhisperModel, string(tr.last.Model))

	tr.err = errors.New("boom")
	_, err = c.Transcribe(context.Background(), []byte("ogg"), "")
	assert.Error(t, err)
}

func TestDescribeImage(t *testing.T) {
	chat := &mockChatService{content: "Impresora con atasco de papel."}
	c := testClient(chat)

	out, err := c.DescribeImage(context.Background(), []byte{0xff, 0xd8}, "image/png", "no imprime")
	require.NoError(t, err)
	assert.Equal(t, "Impresora con atasco de papel.", out)
	assert.Equal(t, DefaultVisionModel, string(chat.last.Model))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension("image/png", ".jpg"))
	assert.Equal(t, ".ogg", Extension("audio/ogg; codecs=opus", ".bin"))
	assert.Equal(t, ".bin", Extension("application/pdf", ".bin"))
}
