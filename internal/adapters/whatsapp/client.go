package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

// DefaultBaseURL is the Graph API root used by the Cloud API.
const DefaultBaseURL = "https://graph.facebook.com/v21.0"

// maxMediaSize caps downloads; WhatsApp itself limits media to 16MB.
const maxMediaSize = 16 << 20

var _ ports.Sender = (*Client)(nil)

// ErrMissingCredentials is returned when the access token or phone number id is unset.
var ErrMissingCredentials = errors.New("whatsapp access token and phone number id must be provided")

// Opts holds configuration for the Cloud API client.
type Opts struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Opts)

func WithAccessToken(token string) Option {
	return func(o *Opts) { o.AccessToken = token }
}

func WithPhoneNumberID(id string) Option {
	return func(o *Opts) { o.PhoneNumberID = id }
}

// WithBaseURL points the client at another Graph API root (tests).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Opts) { o.Logger = logger }
}

// Client sends text messages and downloads media through the Cloud API.
type Client struct {
	token   string
	phoneID string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client. Missing options fall back to the
// WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID environment variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" {
		cfg.AccessToken = os.Getenv("WHATSAPP_ACCESS_TOKEN")
	}
	if cfg.PhoneNumberID == "" {
		cfg.PhoneNumberID = os.Getenv("WHATSAPP_PHONE_NUMBER_ID")
	}
	if cfg.AccessToken == "" || cfg.PhoneNumberID == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Client{
		token:   cfg.AccessToken,
		phoneID: cfg.PhoneNumberID,
		baseURL: cfg.BaseURL,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}, nil
}

type sendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send delivers a text message to a phone number.
func (c *Client) Send(ctx context.Context, to, body string) error {
	payload := sendRequest{MessagingProduct: "whatsapp", To: to, Type: TypeText}
	payload.Text.Body = body
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "whatsapp send failed", "to", to, "err", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	resp.Body.Close()
	c.logger.DebugContext(ctx, "whatsapp message sent", "to", to)
	return nil
}

// Download fetches the bytes of a media attachment.
// It resolves the media id to a signed URL first, then downloads it.
func (c *Client) Download(ctx context.Context, msg Message) ([]byte, string, error) {
	if msg.MediaID == "" {
		return nil, "", fmt.Errorf("message %s has no media id", msg.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+msg.MediaID, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve media %s: %w", msg.MediaID, err)
	}
	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	err = json.NewDecoder(resp.Body).Decode(&meta)
	resp.Body.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode media metadata: %w", err)
	}
	if meta.URL == "" {
		return nil, "", fmt.Errorf("media %s has no download url", msg.MediaID)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err = c.do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media %s: %w", msg.MediaID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media %s: %w", msg.MediaID, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = meta.MimeType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// do authorizes the request and turns non-2xx answers into errors.
// The caller closes the body on success.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api returned %d: %s", e.Status, e.Body)
}
