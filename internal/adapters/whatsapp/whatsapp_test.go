package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/JonathanLopez0327/chat-demo/internal/testutils"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "messages": [
          {"from": "5215550001", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "hola"}},
          {"from": "5215550001", "id": "wamid.2", "timestamp": "1700000001", "type": "image", "image": {"id": "media-1", "mime_type": "image/png", "caption": "la impresora"}},
          {"from": "5215550002", "id": "wamid.3", "timestamp": "1700000002", "type": "audio", "audio": {"id": "media-2", "mime_type": "audio/ogg; codecs=opus"}},
          {"from": "5215550002", "id": "wamid.4", "timestamp": "1700000003", "type": "sticker", "sticker": {"id": "s"}}
        ]
      }
    }]
  }]
}`

func TestParseWebhook(t *testing.T) {
	msgs, err := ParseWebhook([]byte(samplePayload))
	require.NoError(t, err)
	require.Len(t, msgs, 3, "stickers are skipped")

	assert.Equal(t, Message{From: "5215550001", ID: "wamid.1", Type: TypeText, Text: "hola", Timestamp: "1700000000"}, msgs[0])

	assert.Equal(t, TypeImage, msgs[1].Type)
	assert.Equal(t, "media-1", msgs[1].MediaID)
	assert.Equal(t, "la impresora", msgs[1].Text)
	assert.True(t, msgs[1].HasMedia())

	assert.Equal(t, TypeAudio, msgs[2].Type)
	assert.Equal(t, "audio/ogg; codecs=opus", msgs[2].MimeType)
	assert.Empty(t, msgs[2].Text)
}

func TestParseWebhook_StatusCallback(t *testing.T) {
	msgs, err := ParseWebhook([]byte(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"x","status":"read"}]}}]}]}`))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "")
	_, err := NewClient()
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestClient_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/phone-1/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"messages":[{"id":"wamid.out"}]}`)
	}))
	defer srv.Close()

	c, err := NewClient(WithAccessToken("secret"), WithPhoneNumberID("phone-1"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), "5215550001", "¡Hola!"))

	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "5215550001", got.To)
	assert.Equal(t, "¡Hola!", got.Text.Body)
}

func TestClient_SendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(WithAccessToken("bad"), WithPhoneNumberID("p"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	err = c.Send(context.Background(), "1", "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClient_Download(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/media-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"url": srv.URL + "/files/abc", "mime_type": "image/png"})
	})
	mux.HandleFunc("/files/abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	})

	c, err := NewClient(WithAccessToken("secret"), WithPhoneNumberID("p"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	data, mime, err := c.Download(context.Background(), Message{ID: "wamid.2", MediaID: "media-1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)
	assert.Equal(t, "image/png", mime)
}

type fakeDownloader struct {
	err error
}

func (f fakeDownloader) Download(_ context.Context, msg Message) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("bytes-of-" + msg.ID), msg.MimeType, nil
}

func TestProcessor_Process(t *testing.T) {
	dir := t.TempDir()
	media := &testutils.MediaService{
		Transcription: "la terminal no enciende",
		Description:   "una impresora con luz roja",
	}
	p := NewProcessor(media, fakeDownloader{}, WithMediaDir(dir), WithWorkers(2))

	msgs, err := ParseWebhook([]byte(samplePayload))
	require.NoError(t, err)

	out := p.Process(context.Background(), msgs)
	require.Len(t, out, 3)

	assert.Equal(t, domain.TextInput("hola"), out[0].Input)

	img := out[1]
	require.NoError(t, img.Err)
	assert.Equal(t, "la impresora", img.Input.Text)
	require.Len(t, img.Input.Media, 1)
	assert.Equal(t, domain.MediaImage, img.Input.Media[0].Type)
	assert.Equal(t, "una impresora con luz roja", img.Input.Media[0].Description)
	assert.Equal(t, "wamid.2.png", img.Input.Media[0].Filename)
	stored, err := os.ReadFile(img.Input.Media[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "bytes-of-wamid.2", string(stored))

	audio := out[2]
	require.NoError(t, audio.Err)
	assert.Equal(t, "la terminal no enciende", audio.Input.Text, "voice notes without caption become the text")
	require.Len(t, audio.Input.Media, 1)
	assert.Equal(t, domain.MediaAudio, audio.Input.Media[0].Type)
	assert.Equal(t, "wamid.3.ogg", audio.Input.Media[0].Filename)
}

func TestProcessor_DownloadFailure(t *testing.T) {
	p := NewProcessor(&testutils.MediaService{}, fakeDownloader{err: errors.New("boom")}, WithMediaDir(""))
	out := p.Process(context.Background(), []Message{{From: "1", ID: "m", Type: TypeImage, MediaID: "x"}})
	require.Len(t, out, 1)
	assert.EqualError(t, out[0].Err, "boom")
}
