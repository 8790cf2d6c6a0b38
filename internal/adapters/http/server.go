// Package http exposes the bot over HTTP: the WhatsApp Cloud API webhook, the
// Twilio inbound webhook, an admin reset route, metrics and health checks.
package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/adapters/twilio"
	"github.com/JonathanLopez0327/chat-demo/internal/adapters/whatsapp"
	"github.com/JonathanLopez0327/chat-demo/internal/dispatch"
	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/internal/metrics"
	"github.com/JonathanLopez0327/chat-demo/internal/presentation/graph"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/JonathanLopez0327/chat-demo/pkg/thread"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxWebhookBody caps webhook payloads; Meta batches stay far below it.
const maxWebhookBody = 1 << 20

// Bot is the conversation surface the server drives.
type Bot interface {
	Handle(ctx context.Context, threadID string, in domain.Input) (string, error)
	Reset(ctx context.Context, threadID string) error
}

// Channel pairs a media processor with the sender that answers on it.
type Channel struct {
	Processor *whatsapp.Processor
	Sender    ports.Sender
}

// Server routes transport events into the bot.
type Server struct {
	bot         Bot
	dispatcher  *dispatch.Dispatcher
	verifyToken string

	cloud  *Channel
	twilio *Channel

	graph   *dsl.Graph
	metrics *metrics.Metrics
	health  func(context.Context) error
	logger  *slog.Logger
	ctx     context.Context
}

// Option configures the Server.
type Option func(*Server)

// WithCloudAPI enables POST /webhook.
func WithCloudAPI(verifyToken string, ch Channel) Option {
	return func(s *Server) {
		s.verifyToken = verifyToken
		s.cloud = &ch
	}
}

// WithTwilio enables POST /twilio/webhook.
func WithTwilio(ch Channel) Option {
	return func(s *Server) {
		s.twilio = &ch
	}
}

// WithMetrics enables GET /metrics and transport counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGraph enables GET /graph.
func WithGraph(g *dsl.Graph) Option {
	return func(s *Server) {
		s.graph = g
	}
}

// WithHealthCheck adds a dependency probe to GET /healthz.
func WithHealthCheck(fn func(context.Context) error) Option {
	return func(s *Server) {
		s.health = fn
	}
}

// WithLogger sets the logger for webhook and delivery events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server. Background work runs under ctx via the dispatcher.
func New(ctx context.Context, bot Bot, dispatcher *dispatch.Dispatcher, opts ...Option) *Server {
	s := &Server{
		bot:        bot,
		dispatcher: dispatcher,
		logger:     logging.NewNop(),
		ctx:        ctx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if s.cloud != nil {
		r.Get("/webhook", s.VerifyWebhook)
		r.Post("/webhook", s.ReceiveWebhook)
	}
	if s.twilio != nil {
		r.Post("/twilio/webhook", s.ReceiveTwilio)
	}
	r.Post("/reset/{phone}", s.ResetThread)
	r.Get("/healthz", s.GetHealth)
	if s.graph != nil {
		r.Get("/graph", s.GetGraph)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// VerifyWebhook answers Meta's subscription handshake.
func (s *Server) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && s.verifyToken != "" && q.Get("hub.verify_token") == s.verifyToken {
		s.logger.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
		return
	}
	s.logger.Warn("webhook verification failed: invalid token")
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// ReceiveWebhook acknowledges a Cloud API notification at once and handles
// its messages in the background.
func (s *Server) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		s.logger.Warn("webhook: invalid payload", "err", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.enqueue(*s.cloud, msgs)
	writeJSON(w, map[string]string{"status": "ok"})
}

// ReceiveTwilio handles a Twilio inbound form and answers with empty TwiML;
// replies go out through the REST API.
func (s *Server) ReceiveTwilio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	s.enqueue(*s.twilio, twilio.ParseForm(r.PostForm))
	w.Header().Set("Content-Type", "text/xml")
	_, _ = io.WriteString(w, "<Response></Response>")
}

// enqueue keeps arrival order per thread while media of the whole batch is
// processed concurrently.
func (s *Server) enqueue(ch Channel, msgs []whatsapp.Message) {
	if len(msgs) == 0 {
		return
	}
	ready := make(chan struct{})
	var inbound []whatsapp.Inbound
	go func() {
		defer close(ready)
		inbound = ch.Processor.Process(s.ctx, msgs)
	}()

	for i, msg := range msgs {
		if s.metrics != nil {
			s.metrics.ObserveInbound(msg.Type)
		}
		err := s.dispatcher.Submit(msg.From, func(ctx context.Context) {
			select {
			case <-ready:
			case <-ctx.Done():
				return
			}
			s.reply(ctx, ch.Sender, inbound[i])
		})
		if err != nil {
			s.logger.Error("message dropped", "thread_id", msg.From, "message_id", msg.ID, "err", err)
		}
	}
}

func (s *Server) reply(ctx context.Context, sender ports.Sender, in whatsapp.Inbound) {
	threadID := in.Message.From
	reply := thread.ErrorReply
	if in.Err != nil {
		s.logger.ErrorContext(ctx, "media processing failed", "thread_id", threadID, "message_id", in.Message.ID, "err", in.Err)
	} else {
		out, err := s.bot.Handle(ctx, threadID, in.Input)
		switch {
		case err == nil:
			reply = out
		default:
			s.logger.ErrorContext(ctx, "message handling failed", "thread_id", threadID, "err", err)
		}
	}
	if reply == "" {
		return
	}

	err := sender.Send(ctx, threadID, reply)
	if s.metrics != nil {
		s.metrics.ObserveReply(err)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "reply not sent", "thread_id", threadID, "err", err)
		return
	}
	s.logger.InfoContext(ctx, "replied", "thread_id", threadID, "chars", len(reply))
}

// ResetThread discards a thread so its next message starts fresh.
func (s *Server) ResetThread(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if err := s.bot.Reset(r.Context(), phone); err != nil {
		s.logger.Error("reset failed", "thread_id", phone, "err", err)
		http.Error(w, "Reset failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "phone": phone, "message": "Thread reset"})
}

// GetHealth reports liveness and, when configured, dependency health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("health check failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			writeJSON(w, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// GetGraph returns the conversation graph as Mermaid text.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(s.graph, nil))
}

func writeJSON(w http.ResponseWriter, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
