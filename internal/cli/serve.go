package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	chatdemo "github.com/JonathanLopez0327/chat-demo"
	httpadapter "github.com/JonathanLopez0327/chat-demo/internal/adapters/http"
	"github.com/JonathanLopez0327/chat-demo/internal/adapters/twilio"
	"github.com/JonathanLopez0327/chat-demo/internal/adapters/whatsapp"
	"github.com/JonathanLopez0327/chat-demo/internal/config"
	"github.com/JonathanLopez0327/chat-demo/internal/dispatch"
	"github.com/JonathanLopez0327/chat-demo/internal/metrics"
)

// shutdownTimeout bounds graceful shutdown of the listener and queued replies.
const shutdownTimeout = 10 * time.Second

// Service is a bot exposed over HTTP.
type Service struct {
	Bot        *chatdemo.Bot
	Server     *httpadapter.Server
	Dispatcher *dispatch.Dispatcher
}

// NewService wires the transports configured in cfg around bot.
// Channels without credentials are left out of the router.
func NewService(ctx context.Context, cfg *config.Config, bot *chatdemo.Bot, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	media, _ := bot.Media()
	d := dispatch.New(ctx, dispatch.WithLogger(logger))

	opts := []httpadapter.Option{
		httpadapter.WithLogger(logger),
		httpadapter.WithGraph(bot.Graph()),
		httpadapter.WithHealthCheck(bot.Health),
	}
	if m != nil {
		opts = append(opts, httpadapter.WithMetrics(m))
	}

	if cfg.WhatsAppEnabled() {
		wa, err := whatsapp.NewClient(
			whatsapp.WithAccessToken(cfg.WhatsAppAccessToken),
			whatsapp.WithPhoneNumberID(cfg.WhatsAppPhoneNumberID),
			whatsapp.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("whatsapp: %w", err)
		}
		proc := whatsapp.NewProcessor(media, wa,
			whatsapp.WithMediaDir(cfg.MediaDir),
			whatsapp.WithProcessorLogger(logger),
		)
		opts = append(opts, httpadapter.WithCloudAPI(cfg.WhatsAppVerifyToken, httpadapter.Channel{Processor: proc, Sender: wa}))
	} else {
		logger.Warn("whatsapp cloud api disabled: missing access token or phone number id")
	}

	if cfg.TwilioEnabled() {
		tw, err := twilio.NewClient(
			twilio.WithAccountSID(cfg.TwilioAccountSID),
			twilio.WithAuthToken(cfg.TwilioAuthToken),
			twilio.WithFromNumber(cfg.TwilioFromNumber),
			twilio.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("twilio: %w", err)
		}
		proc := whatsapp.NewProcessor(media, tw,
			whatsapp.WithMediaDir(cfg.MediaDir),
			whatsapp.WithProcessorLogger(logger),
		)
		opts = append(opts, httpadapter.WithTwilio(httpadapter.Channel{Processor: proc, Sender: tw}))
	}

	return &Service{
		Bot:        bot,
		Server:     httpadapter.New(ctx, bot, d, opts...),
		Dispatcher: d,
	}, nil
}

// RunServe starts the webhook server and blocks until ctx is cancelled or
// the listener fails. Queued replies are drained before returning.
func RunServe(ctx context.Context, opts Options) error {
	cfg, err := opts.Load()
	if err != nil {
		return err
	}
	logger, err := NewJSONLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	botOpts := []chatdemo.Option{
		chatdemo.WithConfig(cfg),
		chatdemo.WithLogger(logger),
		chatdemo.WithMetrics(m),
	}
	if opts.Debug {
		botOpts = append(botOpts, chatdemo.WithLifecycleHooks(DebugHooks(logger)))
	}
	bot, err := chatdemo.New(ctx, botOpts...)
	if err != nil {
		return fmt.Errorf("error initializing bot: %w", err)
	}
	defer bot.Close()

	svc, err := NewService(ctx, cfg, bot, m, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           svc.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "variant", cfg.FlowVariant, "checkpoints", cfg.CheckpointBackend)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = svc.Dispatcher.Close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown started")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown did not complete", "err", err)
		_ = srv.Close()
	}
	if err := svc.Dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("pending replies abandoned", "err", err)
	}
	logger.Info("server stopped")
	return nil
}
