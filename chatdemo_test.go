package chatdemo_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chatdemo "github.com/JonathanLopez0327/chat-demo"
	"github.com/JonathanLopez0327/chat-demo/internal/config"
	"github.com/JonathanLopez0327/chat-demo/internal/intake"
	"github.com/JonathanLopez0327/chat-demo/internal/metrics"
	"github.com/JonathanLopez0327/chat-demo/internal/store"
	"github.com/JonathanLopez0327/chat-demo/internal/testutils"
	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/memory"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actor = "5215550001"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.CheckpointBackend = config.BackendMemory
	return cfg
}

func TestNew_InjectedCollaborators(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	bot, err := chatdemo.New(ctx,
		chatdemo.WithConfig(testConfig(t)),
		chatdemo.WithRepository(memory.NewRepository()),
		chatdemo.WithTextService(testutils.NewTextService()),
		chatdemo.WithMetrics(m),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bot.Close() })

	reply, err := bot.Handle(ctx, actor, domain.TextInput("hola"))
	require.NoError(t, err)
	assert.Contains(t, reply, "¿Cuál es tu nombre?")

	cp, err := bot.Sessions().Load(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, intake.NodeRegisterUser, cp.PendingNode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Suspends.WithLabelValues(intake.NodeRegisterUser)))

	require.NoError(t, bot.Reset(ctx, actor))
	_, err = bot.Sessions().Load(ctx, actor)
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	assert.Equal(t, intake.NodeGreeting, bot.Graph().Entry())
	assert.NoError(t, bot.Health(ctx), "no owned stores to ping")
	_, ok := bot.Media()
	assert.False(t, ok, "the fake text service handles no media")
}

func TestNew_SQLBackendSharesDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.CheckpointBackend = config.BackendSQL
	cfg.DatabaseDSN = filepath.Join(t.TempDir(), "bot.db")

	bot, err := chatdemo.New(ctx,
		chatdemo.WithConfig(cfg),
		chatdemo.WithTextService(testutils.NewTextService()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bot.Close() })

	_, ok := bot.Repository().(*store.Store)
	require.True(t, ok)
	require.NoError(t, bot.Health(ctx))

	_, err = bot.Handle(ctx, actor, domain.TextInput("hola"))
	require.NoError(t, err)
	threads, err := bot.Sessions().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{actor}, threads)
}

func TestOpenCheckpoints_SQLBackendLocksThreads(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.CheckpointBackend = config.BackendSQL
	cfg.DatabaseDSN = filepath.Join(t.TempDir(), "bot.db")

	cps, err := chatdemo.OpenCheckpoints(ctx, cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cps.Close() })

	require.IsType(t, &store.Locker{}, cps.Locker)
	unlock, err := cps.Locker.Lock(ctx, actor, time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestNew_EncryptsCheckpoints(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.EncryptionKey = strings.Repeat("ab", 32)
	raw := memory.NewStore()

	bot, err := chatdemo.New(ctx,
		chatdemo.WithConfig(cfg),
		chatdemo.WithCheckpointStore(raw),
		chatdemo.WithRepository(memory.NewRepository()),
		chatdemo.WithTextService(testutils.NewTextService()),
	)
	require.NoError(t, err)

	_, err = bot.Handle(ctx, actor, domain.TextInput("hola"))
	require.NoError(t, err)

	sealed, err := raw.Load(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, sealed.State.Messages, "state is sealed at rest")
	assert.Len(t, sealed.State.Draft, 1)
	assert.Equal(t, intake.NodeRegisterUser, sealed.PendingNode)

	cp, err := bot.Sessions().Load(ctx, actor)
	require.NoError(t, err)
	assert.NotEmpty(t, cp.State.Messages)
}

func TestNew_InvalidVariant(t *testing.T) {
	cfg := testConfig(t)
	cfg.FlowVariant = "freestyle"
	_, err := chatdemo.New(context.Background(),
		chatdemo.WithConfig(cfg),
		chatdemo.WithRepository(memory.NewRepository()),
		chatdemo.WithTextService(testutils.NewTextService()),
	)
	assert.Error(t, err)
}

type echo struct{ inputs []string }

func (e *echo) Handle(_ context.Context, _ string, in domain.Input) (string, error) {
	if in.Text == "falla" {
		return "", errors.New("boom")
	}
	e.inputs = append(e.inputs, in.Text)
	return "**" + in.Text + "**", nil
}

func TestRunner(t *testing.T) {
	var out bytes.Buffer
	h := &echo{}
	r := &chatdemo.Runner{
		Input:    strings.NewReader("hola\n\nfalla\nadiós\nexit\nignored\n"),
		Output:   &out,
		Headless: true,
		Renderer: func(s string) (string, error) { return strings.Trim(s, "*"), nil },
	}

	require.NoError(t, r.Run(context.Background(), h, actor))
	assert.Equal(t, []string{"hola", "adiós"}, h.inputs)
	assert.Equal(t, "hola\nerror: boom\nadiós\n", out.String())
}

func TestRunner_EOFWithoutNewline(t *testing.T) {
	var out bytes.Buffer
	h := &echo{}
	r := &chatdemo.Runner{Input: strings.NewReader("último"), Output: &out}

	require.NoError(t, r.Run(context.Background(), h, actor))
	assert.Equal(t, []string{"último"}, h.inputs)
	assert.Contains(t, out.String(), "--- thread "+actor)
}

func TestRunner_RequiresIO(t *testing.T) {
	assert.Error(t, (&chatdemo.Runner{}).Run(context.Background(), &echo{}, actor))
}
