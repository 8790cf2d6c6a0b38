package chatdemo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/adapters/file"
	"github.com/JonathanLopez0327/chat-demo/internal/config"
	"github.com/JonathanLopez0327/chat-demo/internal/intake"
	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/internal/metrics"
	"github.com/JonathanLopez0327/chat-demo/internal/runtime"
	"github.com/JonathanLopez0327/chat-demo/internal/store"
	"github.com/JonathanLopez0327/chat-demo/internal/textai"
	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/memory"
	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/redis"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
	"github.com/JonathanLopez0327/chat-demo/pkg/persistence/middleware"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/JonathanLopez0327/chat-demo/pkg/session"
	"github.com/JonathanLopez0327/chat-demo/pkg/thread"
)

// LockPrefix namespaces distributed thread locks in Redis.
const LockPrefix = "incidentbot:lock:"

// Bot is the high-level entry point: a fully wired intake bot.
// Every collaborator is built in New or injected through an Option; nothing
// lives in package-level state.
type Bot struct {
	cfg      *config.Config
	repo     ports.Repository
	store    ports.CheckpointStore
	text     ports.TextService
	catalog  *intake.Catalog
	metrics  *metrics.Metrics
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
	graph    *dsl.Graph
	engine   *runtime.Engine
	sessions *session.Manager
	adapter  *thread.Adapter
	locker   ports.DistributedLocker
	pingers  []func(context.Context) error
	closers  []func() error
}

// Option configures the Bot.
type Option func(*Bot)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(b *Bot) {
		b.cfg = cfg
	}
}

// WithRepository injects the domain repository instead of the SQL one.
func WithRepository(repo ports.Repository) Option {
	return func(b *Bot) {
		b.repo = repo
	}
}

// WithCheckpointStore injects the checkpoint store, bypassing checkpoint_backend.
func WithCheckpointStore(s ports.CheckpointStore) Option {
	return func(b *Bot) {
		b.store = s
	}
}

// WithTextService injects the text understanding service instead of OpenAI.
func WithTextService(text ports.TextService) Option {
	return func(b *Bot) {
		b.text = text
	}
}

// WithCatalog injects the incident catalog.
func WithCatalog(c *intake.Catalog) Option {
	return func(b *Bot) {
		b.catalog = c
	}
}

// WithMetrics feeds engine lifecycle events into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bot) {
		b.metrics = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithLogger sets the structured logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) {
		b.now = now
	}
}

// New builds the bot. Collaborators that were not injected are created from
// the configuration: the SQL repository, the checkpoint backend and the
// OpenAI client.
func New(ctx context.Context, opts ...Option) (*Bot, error) {
	b := &Bot{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		b.cfg = cfg
	}

	if err := b.init(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bot) init(ctx context.Context) error {
	if err := b.openRepository(ctx); err != nil {
		return err
	}
	if err := b.openCheckpoints(ctx); err != nil {
		return err
	}
	if err := b.openText(); err != nil {
		return err
	}
	if b.catalog == nil {
		c, err := loadCatalog(b.cfg.CatalogPath)
		if err != nil {
			return err
		}
		b.catalog = c
	}

	g, err := BuildGraph(b.cfg, intake.Deps{Text: b.text, Repo: b.repo, Catalog: b.catalog},
		intake.WithLogger(b.logger), intake.WithClock(b.now))
	if err != nil {
		return err
	}
	b.graph = g

	hooks := b.hooks
	if b.metrics != nil {
		hooks = b.metrics.Hooks(hooks)
	}
	b.engine = runtime.NewEngine(g, b.store,
		runtime.WithLifecycleHooks(hooks),
		runtime.WithLogger(b.logger),
		runtime.WithClock(b.now),
	)

	sessionOpts := []session.Option{session.WithLogger(b.logger)}
	if b.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(b.locker))
	}
	b.sessions = session.NewManager(b.store, sessionOpts...)

	b.adapter = thread.New(b.engine, b.sessions, b.repo,
		thread.WithLogger(b.logger),
		thread.WithMaxInput(b.cfg.MaxInputSize),
		thread.WithClock(b.now),
	)
	return nil
}

func (b *Bot) openRepository(ctx context.Context) error {
	if b.repo != nil {
		return nil
	}
	s, err := store.Open(ctx, store.WithDSN(b.cfg.DatabaseDSN), store.WithLogger(b.logger))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	b.repo = s
	b.pingers = append(b.pingers, s.Ping)
	b.closers = append(b.closers, s.Close)
	return nil
}

func (b *Bot) openCheckpoints(ctx context.Context) error {
	if b.store == nil {
		// Share the repository database when it is the SQL store.
		shared, _ := b.repo.(*store.Store)
		cps, err := openBackend(ctx, b.cfg, shared, b.logger)
		if err != nil {
			return err
		}
		b.store, b.locker = cps.Store, cps.Locker
		if cps.Ping != nil {
			b.pingers = append(b.pingers, cps.Ping)
		}
		if cps.Close != nil {
			b.closers = append(b.closers, cps.Close)
		}
	}
	wrapped, err := wrap(b.cfg, b.store)
	if err != nil {
		return err
	}
	b.store = wrapped
	return nil
}

// Checkpoints is an opened checkpoint backend.
type Checkpoints struct {
	Store ports.CheckpointStore
	// Locker is set for backends shared between replicas.
	Locker ports.DistributedLocker
	Ping   func(context.Context) error
	Close  func() error
}

// OpenCheckpoints opens the backend selected by cfg.CheckpointBackend with
// the configured persistence middleware applied, e.g. for admin tools that
// inspect threads without running the bot.
func OpenCheckpoints(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Checkpoints, error) {
	cps, err := openBackend(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	wrapped, err := wrap(cfg, cps.Store)
	if err != nil {
		if cps.Close != nil {
			_ = cps.Close()
		}
		return nil, err
	}
	cps.Store = wrapped
	return cps, nil
}

func openBackend(ctx context.Context, cfg *config.Config, shared *store.Store, logger *slog.Logger) (*Checkpoints, error) {
	switch cfg.CheckpointBackend {
	case config.BackendMemory:
		return &Checkpoints{Store: memory.NewStore()}, nil
	case config.BackendFile:
		return &Checkpoints{Store: file.New(cfg.CheckpointDir)}, nil
	case config.BackendRedis:
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return &Checkpoints{
			Store:  rs,
			Locker: redis.NewLocker(rs.Client(), LockPrefix),
			Ping:   func(ctx context.Context) error { return rs.Client().Ping(ctx).Err() },
			Close:  rs.Close,
		}, nil
	case config.BackendSQL:
		if shared != nil {
			return &Checkpoints{Store: shared, Locker: store.NewLocker(shared, LockPrefix)}, nil
		}
		s, err := store.Open(ctx, store.WithDSN(cfg.DatabaseDSN), store.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
		}
		return &Checkpoints{Store: s, Locker: store.NewLocker(s, LockPrefix), Ping: s.Ping, Close: s.Close}, nil
	}
	return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.CheckpointBackend)
}

// wrap applies the persistence middleware selected in cfg.
func wrap(cfg *config.Config, s ports.CheckpointStore) (ports.CheckpointStore, error) {
	var mws []middleware.Middleware
	if cfg.MaskPII {
		mw, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(s, mws...), nil
}

func (b *Bot) openText() error {
	if b.text != nil {
		return nil
	}
	c, err := textai.NewClient(TextOptions(b.cfg, b.logger)...)
	if err != nil {
		return fmt.Errorf("failed to create text service: %w", err)
	}
	b.text = c
	return nil
}

// TextOptions maps the configuration onto textai options.
func TextOptions(cfg *config.Config, logger *slog.Logger) []textai.Option {
	return []textai.Option{
		textai.WithAPIKey(cfg.OpenAIAPIKey),
		textai.WithBaseURL(cfg.OpenAIBaseURL),
		textai.WithModel(cfg.ModelName),
		textai.WithVisionModel(cfg.VisionModel),
		textai.WithWhisperModel(cfg.WhisperModel),
		textai.WithTemperature(cfg.ModelTemperature),
		textai.WithLogger(logger),
	}
}

// BuildGraph compiles the intake graph with the flow settings of cfg.
func BuildGraph(cfg *config.Config, deps intake.Deps, opts ...intake.Option) (*dsl.Graph, error) {
	variant, err := intake.ParseVariant(cfg.FlowVariant)
	if err != nil {
		return nil, err
	}
	opts = append([]intake.Option{
		intake.WithVariant(variant),
		intake.WithThreshold(cfg.ConfidenceThreshold),
		intake.WithMaxAttempts(cfg.MaxClassifyAttempts),
	}, opts...)
	return intake.Build(deps, opts...)
}

func loadCatalog(path string) (*intake.Catalog, error) {
	if path == "" {
		return intake.DefaultCatalog()
	}
	return intake.LoadCatalog(path)
}

// Handle processes one inbound message of threadID and returns the reply.
func (b *Bot) Handle(ctx context.Context, threadID string, in domain.Input) (string, error) {
	return b.adapter.Handle(ctx, threadID, in)
}

// Reset discards the thread so its next message starts a new conversation.
func (b *Bot) Reset(ctx context.Context, threadID string) error {
	return b.adapter.Reset(ctx, threadID)
}

// Graph returns the compiled conversation graph.
func (b *Bot) Graph() *dsl.Graph {
	return b.graph
}

// Sessions returns the session manager guarding thread checkpoints.
func (b *Bot) Sessions() *session.Manager {
	return b.sessions
}

// Repository returns the domain repository.
func (b *Bot) Repository() ports.Repository {
	return b.repo
}

// Media returns the media service when the text service also provides one.
func (b *Bot) Media() (ports.MediaService, bool) {
	m, ok := b.text.(ports.MediaService)
	return m, ok
}

// Config returns the effective configuration.
func (b *Bot) Config() *config.Config {
	return b.cfg
}

// Health pings the external stores the bot owns.
func (b *Bot) Health(ctx context.Context) error {
	var errs []error
	for _, ping := range b.pingers {
		errs = append(errs, ping(ctx))
	}
	return errors.Join(errs...)
}

// Close releases the stores the bot opened. Injected collaborators are left
// to their owners.
func (b *Bot) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
