package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/redis"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunCheckpointStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	threadID := "thread-ttl"

	cp := domain.NewCheckpoint(threadID, domain.NewConversationState(threadID))
	cp.PendingNode = "register_user"
	require.NoError(t, store.Save(ctx, cp))

	threads, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, threads, threadID)

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, threadID)
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	// the index is pruned against wall-clock time
	time.Sleep(1200 * time.Millisecond)

	threads, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewCheckpoint("my-thread", domain.ConversationState{})))

	assert.True(t, mr.Exists("custom:app:my-thread"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, list, "my-thread")
}
