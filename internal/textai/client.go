package textai

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Defaults used when no option overrides them.
const (
	DefaultModel        = "gpt-4o-mini"
	DefaultVisionModel  = "gpt-4o"
	DefaultWhisperModel = "whisper-1"
	DefaultTemperature  = 0.1
	defaultVisionTokens = 500
)

var (
	// ErrNoAPIKey is returned by NewClient when no key is configured.
	ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")
	// ErrNoChoicesReturned is returned when the API answers without choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// chatService is the slice of the chat completions API the client uses.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// transcriptionService is the slice of the audio API the client uses.
type transcriptionService interface {
	Transcribe(ctx context.Context, params openai.AudioTranscriptionNewParams) (string, error)
}

type openaiChat struct {
	svc *openai.ChatCompletionService
}

func (c openaiChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

type openaiAudio struct {
	svc *openai.AudioTranscriptionService
}

func (a openaiAudio) Transcribe(ctx context.Context, params openai.AudioTranscriptionNewParams) (string, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Client implements ports.TextService and ports.MediaService.
type Client struct {
	chat  chatService
	audio transcriptionService

	apiKey       string
	baseURL      string
	model        string
	visionModel  string
	whisperModel string
	temperature  float64
	language     string
	logger       *slog.Logger
}

var (
	_ ports.TextService  = (*Client)(nil)
	_ ports.MediaService = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the API key. OPENAI_API_KEY is used otherwise.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithModel sets the model used for text tasks.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithVisionModel sets the model used to describe images.
func WithVisionModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.visionModel = model
		}
	}
}

// WithWhisperModel sets the transcription model.
func WithWhisperModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.whisperModel = model
		}
	}
}

// WithTemperature sets the sampling temperature for text tasks.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a Client backed by the OpenAI API.
func NewClient(opts ...Option) (*Client, error) {
	c := newClient(opts...)
	if c.apiKey == "" {
		c.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	cli := openai.NewClient(reqOpts...)
	c.chat = openaiChat{svc: &cli.Chat.Completions}
	c.audio = openaiAudio{svc: &cli.Audio.Transcriptions}
	return c, nil
}

func newClient(opts ...Option) *Client {
	c := &Client{
		model:        DefaultModel,
		visionModel:  DefaultVisionModel,
		whisperModel: DefaultWhisperModel,
		temperature:  DefaultTemperature,
		language:     "es",
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// complete sends one user prompt and returns the first choice.
func (c *Client) complete(ctx context.Context, task, prompt string, jsonMode bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(c.temperature),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		c.logger.ErrorContext(ctx, "chat completion failed", "task", task, "model", c.model, "err", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	c.logger.DebugContext(ctx, "chat completion", "task", task, "model", c.model, "chars", len(content))
	return content, nil
}
