// Package whatsapp talks to the WhatsApp Cloud API: it parses webhook
// payloads, downloads media, sends replies and turns inbound messages into
// engine inputs.
package whatsapp

import (
	"encoding/json"
	"fmt"
)

// Inbound message kinds the bot understands. Anything else is skipped.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeAudio = "audio"
)

// Message is one inbound WhatsApp message, independent of the provider.
// Cloud API messages carry a MediaID; Twilio messages carry a MediaURL.
type Message struct {
	From      string
	ID        string
	Type      string
	Text      string
	MediaID   string
	MediaURL  string
	MimeType  string
	Timestamp string
}

// HasMedia reports whether the message references an attachment.
func (m Message) HasMedia() bool {
	return m.MediaID != "" || m.MediaURL != ""
}

// webhookPayload mirrors the subset of the Cloud API notification we read.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Type      string `json:"type"`
					Timestamp string `json:"timestamp"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
					Image *mediaPart `json:"image,omitempty"`
					Audio *mediaPart `json:"audio,omitempty"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type mediaPart struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

// ParseWebhook extracts the supported messages of a notification, in order.
// Status callbacks and unsupported types yield no messages.
func ParseWebhook(body []byte) ([]Message, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	var out []Message
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, raw := range change.Value.Messages {
				msg := Message{
					From:      raw.From,
					ID:        raw.ID,
					Type:      raw.Type,
					Timestamp: raw.Timestamp,
				}
				switch raw.Type {
				case TypeText:
					if raw.Text != nil {
						msg.Text = raw.Text.Body
					}
				case TypeImage:
					if raw.Image == nil {
						continue
					}
					msg.MediaID = raw.Image.ID
					msg.MimeType = raw.Image.MimeType
					msg.Text = raw.Image.Caption
				case TypeAudio:
					if raw.Audio == nil {
						continue
					}
					msg.MediaID = raw.Audio.ID
					msg.MimeType = raw.Audio.MimeType
				default:
					continue
				}
				out = append(out, msg)
			}
		}
	}
	return out, nil
}
