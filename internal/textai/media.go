package textai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

var mimeExt = map[string]string{
	"audio/ogg":              ".ogg",
	"audio/ogg; codecs=opus": ".ogg",
	"audio/mpeg":             ".mp3",
	"audio/mp4":              ".m4a",
	"image/jpeg":             ".jpg",
	"image/png":              ".png",
	"image/webp":             ".webp",
}

// Extension returns the file extension for a WhatsApp MIME type.
func Extension(mime, fallback string) string {
	if ext, ok := mimeExt[strings.ToLower(strings.TrimSpace(mime))]; ok {
		return ext
	}
	return fallback
}

// Transcribe turns a voice note into Spanish text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mime string) (string, error) {
	if c.audio == nil {
		return "", fmt.Errorf("transcribe: %w", ErrNoAPIKey)
	}
	if mime == "" {
		mime = "audio/ogg"
	}
	params := openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(audio), "audio"+Extension(mime, ".ogg"), mime),
		Model:    openai.AudioModel(c.whisperModel),
		Language: openai.String(c.language),
	}
	text, err := c.audio.Transcribe(ctx, params)
	if err != nil {
		c.logger.ErrorContext(ctx, "transcription failed", "model", c.whisperModel, "err", err)
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// DescribeImage describes a photo in the context of an incident report.
func (c *Client) DescribeImage(ctx context.Context, image []byte, mime, caption string) (string, error) {
	prompt, err := render("image", map[string]string{"Caption": caption})
	if err != nil {
		return "", err
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	url := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.visionModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
			}),
		},
		MaxTokens: openai.Int(defaultVisionTokens),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		c.logger.ErrorContext(ctx, "image description failed", "model", c.visionModel, "err", err)
		return "", fmt.Errorf("describe image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("describe image: %w", ErrNoChoicesReturned)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
