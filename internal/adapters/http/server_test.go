package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/adapters/whatsapp"
	"github.com/JonathanLopez0327/chat-demo/internal/dispatch"
	"github.com/JonathanLopez0327/chat-demo/internal/metrics"
	"github.com/JonathanLopez0327/chat-demo/internal/testutils"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
	"github.com/JonathanLopez0327/chat-demo/pkg/thread"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu     sync.Mutex
	inputs map[string][]string
	resets []string
	err    error
}

func newFakeBot() *fakeBot {
	return &fakeBot{inputs: make(map[string][]string)}
}

func (b *fakeBot) Handle(_ context.Context, threadID string, in domain.Input) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.inputs[threadID] = append(b.inputs[threadID], in.Text)
	return "eco: " + in.Text, nil
}

func (b *fakeBot) Reset(_ context.Context, threadID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.resets = append(b.resets, threadID)
	return nil
}

type fixture struct {
	bot        *fakeBot
	sender     *testutils.Sender
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	handler    http.Handler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		bot:        newFakeBot(),
		sender:     &testutils.Sender{},
		dispatcher: dispatch.New(context.Background()),
		metrics:    metrics.New(),
	}
	ch := Channel{Processor: whatsapp.NewProcessor(nil, nil), Sender: f.sender}
	opts = append([]Option{
		WithCloudAPI("secret", ch),
		WithTwilio(ch),
		WithMetrics(f.metrics),
	}, opts...)
	f.handler = New(context.Background(), f.bot, f.dispatcher, opts...).Handler()
	return f
}

// drain waits until every submitted job ran.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.dispatcher.Close(ctx))
}

func (f *fixture) do(method, target string, body string, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestVerifyWebhook(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=1158201444", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1158201444", rr.Body.String())

	rr = f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", "", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Forbidden")

	rr = f.do(http.MethodGet, "/webhook?hub.mode=unsubscribe&hub.verify_token=secret&hub.challenge=1", "", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

const webhookBody = `{
  "object": "whatsapp_business_account",
  "entry": [{"changes": [{"value": {"messages": [
    {"from": "5215550001", "id": "wamid.1", "type": "text", "text": {"body": "uno"}},
    {"from": "5215550002", "id": "wamid.2", "type": "text", "text": {"body": "hola"}},
    {"from": "5215550001", "id": "wamid.3", "type": "text", "text": {"body": "dos"}},
    {"from": "5215550001", "id": "wamid.4", "type": "text", "text": {"body": "tres"}}
  ]}}]}]
}`

func TestReceiveWebhook_RepliesInOrder(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/webhook", webhookBody, "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])

	f.drain(t)
	assert.Equal(t, []string{"uno", "dos", "tres"}, f.bot.inputs["5215550001"])
	assert.Equal(t, []string{"hola"}, f.bot.inputs["5215550002"])

	var first []string
	for _, m := range f.sender.Messages() {
		if m.To == "5215550001" {
			first = append(first, m.Body)
		}
	}
	assert.Equal(t, []string{"eco: uno", "eco: dos", "eco: tres"}, first)
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.Inbound.WithLabelValues(whatsapp.TypeText)))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.Replies.WithLabelValues("ok")))
}

func TestReceiveWebhook_InvalidBody(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/webhook", "not json", "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReceiveWebhook_StatusOnly(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/webhook", `{"entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`, "application/json")
	assert.Equal(t, http.StatusOK, rr.Code)
	f.drain(t)
	assert.Empty(t, f.sender.Messages())
}

func TestReceiveWebhook_HandlerErrorSendsApology(t *testing.T) {
	f := newFixture(t)
	f.bot.err = errors.New("boom")

	rr := f.do(http.MethodPost, "/webhook", webhookBody, "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	f.drain(t)

	msgs := f.sender.Messages()
	require.Len(t, msgs, 4)
	for _, m := range msgs {
		assert.Equal(t, thread.ErrorReply, m.Body)
	}
}

func TestReceiveWebhook_MediaFailureSendsApology(t *testing.T) {
	f := newFixture(t)
	body := `{"entry":[{"changes":[{"value":{"messages":[
	  {"from": "5215550003", "id": "wamid.9", "type": "audio", "audio": {"id": "media-9", "mime_type": "audio/ogg"}}
	]}}]}]}`

	rr := f.do(http.MethodPost, "/webhook", body, "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	f.drain(t)

	assert.Empty(t, f.bot.inputs, "failed media never reaches the bot")
	require.Len(t, f.sender.Messages(), 1)
	assert.Equal(t, thread.ErrorReply, f.sender.Messages()[0].Body)
}

func TestReceiveTwilio(t *testing.T) {
	f := newFixture(t)
	form := url.Values{
		"From":       {"whatsapp:+5215550001"},
		"MessageSid": {"SM1"},
		"Body":       {"hola"},
		"NumMedia":   {"0"},
	}

	rr := f.do(http.MethodPost, "/twilio/webhook", form.Encode(), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<Response></Response>", rr.Body.String())
	assert.Equal(t, "text/xml", rr.Header().Get("Content-Type"))

	f.drain(t)
	assert.Equal(t, []testutils.Outbound{{To: "5215550001", Body: "eco: hola"}}, f.sender.Messages())
}

func TestResetThread(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/reset/5215550001", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"status": "ok", "phone": "5215550001", "message": "Thread reset"}, resp)
	assert.Equal(t, []string{"5215550001"}, f.bot.resets)

	f.bot.err = errors.New("store down")
	rr = f.do(http.MethodPost, "/reset/5215550001", "", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])

	down := newFixture(t, WithHealthCheck(func(context.Context) error { return errors.New("db down") }))
	rr = down.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestGetGraph(t *testing.T) {
	b := dsl.New("start")
	b.Add("start").Run(func(context.Context, domain.ConversationState, *domain.Input) (domain.Update, error) {
		return domain.Update{}, nil
	}).Next("done")
	b.Terminal("done")
	g, err := b.Compile()
	require.NoError(t, err)

	f := newFixture(t, WithGraph(g))
	rr := f.do(http.MethodGet, "/graph", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "start --> done")

	rr = newFixture(t).do(http.MethodGet, "/graph", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.metrics.ObserveInbound(whatsapp.TypeText)

	rr := f.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "incidentbot_")
}
