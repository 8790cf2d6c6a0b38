package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/internal/textai"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkers bounds concurrent media downloads per webhook batch.
const DefaultWorkers = 4

// Downloader fetches the bytes behind a media message.
type Downloader interface {
	Download(ctx context.Context, msg Message) ([]byte, string, error)
}

// Inbound is a message paired with the engine input built from it.
// Err is set when the media could not be processed.
type Inbound struct {
	Message Message
	Input   domain.Input
	Err     error
}

// Processor turns inbound messages into engine inputs. Media is downloaded,
// stored under the media directory and converted to text.
type Processor struct {
	media   ports.MediaService
	dl      Downloader
	dir     string
	workers int
	logger  *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithMediaDir sets where downloaded attachments are written.
func WithMediaDir(dir string) ProcessorOption {
	return func(p *Processor) { p.dir = dir }
}

// WithWorkers bounds concurrent media processing.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// NewProcessor creates a Processor.
func NewProcessor(media ports.MediaService, dl Downloader, opts ...ProcessorOption) *Processor {
	p := &Processor{
		media:   media,
		dl:      dl,
		dir:     filepath.Join("data", "media"),
		workers: DefaultWorkers,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process builds one Inbound per message, in the same order.
// Media messages are handled concurrently; text messages pass straight through.
func (p *Processor) Process(ctx context.Context, msgs []Message) []Inbound {
	out := make([]Inbound, len(msgs))
	workers := pool.New().WithContext(ctx).WithMaxGoroutines(p.workers)
	for i, msg := range msgs {
		out[i].Message = msg
		if !msg.HasMedia() {
			out[i].Input = domain.TextInput(msg.Text)
			continue
		}
		workers.Go(func(ctx context.Context) error {
			in, err := p.input(ctx, msg)
			out[i].Input = in
			out[i].Err = err
			return nil
		})
	}
	_ = workers.Wait()
	return out
}

func (p *Processor) input(ctx context.Context, msg Message) (domain.Input, error) {
	if p.media == nil || p.dl == nil {
		return domain.Input{}, fmt.Errorf("media processing is not configured")
	}

	data, contentType, err := p.dl.Download(ctx, msg)
	if err != nil {
		return domain.Input{}, err
	}
	mime := msg.MimeType
	if mime == "" {
		mime = contentType
	}

	switch msg.Type {
	case TypeAudio:
		text, err := p.media.Transcribe(ctx, data, mime)
		if err != nil {
			return domain.Input{}, fmt.Errorf("failed to transcribe %s: %w", msg.ID, err)
		}
		p.logger.DebugContext(ctx, "audio transcribed", "thread_id", msg.From, "chars", len(text))
		ref := domain.MediaRef{
			Type:        domain.MediaAudio,
			Description: text,
			Filename:    msg.ID + textai.Extension(mime, ".ogg"),
			MimeType:    mime,
		}
		ref.FilePath = p.store(ctx, msg.From, ref.Filename, data)
		caption := strings.TrimSpace(msg.Text)
		if caption == "" {
			caption = text
		}
		return domain.Input{Text: caption, Media: []domain.MediaRef{ref}}, nil

	case TypeImage:
		desc, err := p.media.DescribeImage(ctx, data, mime, msg.Text)
		if err != nil {
			return domain.Input{}, fmt.Errorf("failed to describe %s: %w", msg.ID, err)
		}
		p.logger.DebugContext(ctx, "image described", "thread_id", msg.From, "chars", len(desc))
		ref := domain.MediaRef{
			Type:        domain.MediaImage,
			Description: desc,
			Filename:    msg.ID + textai.Extension(mime, ".jpg"),
			MimeType:    mime,
		}
		ref.FilePath = p.store(ctx, msg.From, ref.Filename, data)
		return domain.Input{Text: strings.TrimSpace(msg.Text), Media: []domain.MediaRef{ref}}, nil
	}
	return domain.Input{}, fmt.Errorf("unsupported media type %q", msg.Type)
}

// store writes the attachment and returns its path, or "" when it could not.
// A missing file only loses the attachment row, never the report.
func (p *Processor) store(ctx context.Context, thread, name string, data []byte) string {
	if p.dir == "" {
		return ""
	}
	dir := filepath.Join(p.dir, sanitizeName(thread))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.logger.WarnContext(ctx, "media dir not created", "dir", dir, "err", err)
		return ""
	}
	path := filepath.Join(dir, sanitizeName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		p.logger.WarnContext(ctx, "media not stored", "path", path, "err", err)
		return ""
	}
	return path
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
