// Package twilio sends and receives WhatsApp messages through Twilio.
package twilio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/adapters/whatsapp"
	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const whatsappPrefix = "whatsapp:"

const maxMediaSize = 16 << 20

var (
	_ ports.Sender        = (*Client)(nil)
	_ whatsapp.Downloader = (*Client)(nil)
)

// messageCreator is the slice of the Twilio REST API the client uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Logger     *slog.Logger
}

// Option defines a configuration option for the Twilio client.
type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sender number, with or without the whatsapp: prefix.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Opts) { o.Logger = logger }
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	api    messageCreator
	from   string
	sid    string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a client. Missing options fall back to TWILIO_ACCOUNT_SID,
// TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	cfg.Logger.Debug("twilio client config loaded",
		"account_sid_set", cfg.AccountSID != "",
		"auth_token_set", cfg.AuthToken != "",
		"from_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newClient(rest.Api, cfg), nil
}

func newClient(api messageCreator, cfg Opts) *Client {
	from := cfg.FromNumber
	if !strings.HasPrefix(from, whatsappPrefix) {
		from = whatsappPrefix + from
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		api:    api,
		from:   from,
		sid:    cfg.AccountSID,
		token:  cfg.AuthToken,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// Send delivers a WhatsApp message. to is a bare phone number.
func (c *Client) Send(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappPrefix + "+" + normalize(to))
	params.SetFrom(c.from)
	params.SetBody(body)

	if _, err := c.api.CreateMessage(params); err != nil {
		c.logger.ErrorContext(ctx, "twilio send failed", "to", to, "err", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	c.logger.DebugContext(ctx, "twilio message sent", "to", to)
	return nil
}

// Download fetches a Twilio-hosted attachment with account credentials.
func (c *Client) Download(ctx context.Context, msg whatsapp.Message) ([]byte, string, error) {
	if msg.MediaURL == "" {
		return nil, "", fmt.Errorf("message %s has no media url", msg.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg.MediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.sid, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("media download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ParseForm converts a Twilio inbound webhook form into messages.
// Each attachment becomes its own message; the body rides on the first one.
func ParseForm(form url.Values) []whatsapp.Message {
	from := normalize(form.Get("From"))
	id := form.Get("MessageSid")
	body := form.Get("Body")
	n, _ := strconv.Atoi(form.Get("NumMedia"))

	var out []whatsapp.Message
	for i := 0; i < n; i++ {
		mime := form.Get(fmt.Sprintf("MediaContentType%d", i))
		kind := ""
		switch {
		case strings.HasPrefix(mime, "image/"):
			kind = whatsapp.TypeImage
		case strings.HasPrefix(mime, "audio/"):
			kind = whatsapp.TypeAudio
		default:
			continue
		}
		msg := whatsapp.Message{
			From:     from,
			ID:       fmt.Sprintf("%s-%d", id, i),
			Type:     kind,
			MediaURL: form.Get(fmt.Sprintf("MediaUrl%d", i)),
			MimeType: mime,
		}
		if len(out) == 0 {
			msg.Text = body
		}
		out = append(out, msg)
	}
	if len(out) == 0 && body != "" {
		out = append(out, whatsapp.Message{From: from, ID: id, Type: whatsapp.TypeText, Text: body})
	}
	return out
}

// normalize strips the whatsapp: prefix and the leading plus sign.
func normalize(number string) string {
	number = strings.TrimPrefix(strings.TrimSpace(number), whatsappPrefix)
	return strings.TrimPrefix(number, "+")
}
