package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore
// implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000")

	newCP := func(id string) *domain.Checkpoint {
		state := domain.NewConversationState("5215550001")
		state.Apply(domain.Update{
			Messages:    []domain.Message{domain.AssistantMessage("¿Cuál es tu nombre?")},
			Draft:       map[string]string{"plant": "Norte"},
			CurrentNode: "greeting",
		})
		cp := domain.NewCheckpoint(id, state)
		cp.PendingNode = "register_user"
		return cp
	}

	t.Run("Save and Load", func(t *testing.T) {
		id := prefix + "-save"
		cp := newCP(id)

		require.NoError(t, store.Save(ctx, cp))
		assert.Equal(t, int64(1), cp.Version, "Save should bump the version")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, loaded.ThreadID)
		assert.Equal(t, int64(1), loaded.Version)
		assert.Equal(t, "register_user", loaded.PendingNode)
		assert.Equal(t, "Norte", loaded.State.Draft["plant"])
		assert.Equal(t, cp.State.Messages, loaded.State.Messages)
		assert.True(t, loaded.Active())

		loaded.PendingNode = ""
		require.NoError(t, store.Save(ctx, loaded))
		assert.Equal(t, int64(2), loaded.Version)

		again, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.False(t, again.Active())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, prefix+"-missing")
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("Stale Save Rejected", func(t *testing.T) {
		id := prefix + "-stale"
		cp := newCP(id)
		require.NoError(t, store.Save(ctx, cp))

		stale := newCP(id)
		err := store.Save(ctx, stale)
		assert.ErrorIs(t, err, domain.ErrStaleCheckpoint, "version 0 on an existing thread must lose")
		assert.Equal(t, int64(0), stale.Version)

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), loaded.Version)
	})

	t.Run("Delete", func(t *testing.T) {
		id := prefix + "-delete"
		require.NoError(t, store.Save(ctx, newCP(id)))

		require.NoError(t, store.Delete(ctx, id))
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

		assert.NoError(t, store.Delete(ctx, id), "Delete should be idempotent")
	})

	t.Run("Save After Delete Is Stale", func(t *testing.T) {
		id := prefix + "-delrace"
		cp := newCP(id)
		require.NoError(t, store.Save(ctx, cp))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, id))

		err = store.Save(ctx, loaded)
		assert.ErrorIs(t, err, domain.ErrStaleCheckpoint)

		_, err = store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("Versions Survive Delete", func(t *testing.T) {
		id := prefix + "-reset"
		require.NoError(t, store.Save(ctx, newCP(id)))

		inFlight, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, id))

		fresh := newCP(id)
		fresh.PendingNode = "collect_description"
		require.NoError(t, store.Save(ctx, fresh), "a deleted thread restarts from version zero")
		assert.Greater(t, fresh.Version, inFlight.Version, "versions must not restart after Delete")

		inFlight.PendingNode = "classify-stale"
		err = store.Save(ctx, inFlight)
		assert.ErrorIs(t, err, domain.ErrStaleCheckpoint, "a write from before the reset must lose")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "collect_description", loaded.PendingNode)
		assert.Equal(t, fresh.Version, loaded.Version)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id)

		require.NoError(t, store.Delete(ctx, id))
		ids, err = store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, id, "deleted threads are not listed")
	})

	t.Run("Concurrent Saves", func(t *testing.T) {
		id := prefix + "-concurrent"
		require.NoError(t, store.Save(ctx, newCP(id)))

		const writers = 8
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			wins  int
			stale int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cp := newCP(id)
				cp.Version = 1
				cp.State.Draft["line"] = fmt.Sprintf("L%d", i)
				err := store.Save(ctx, cp)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case assert.ErrorIs(t, err, domain.ErrStaleCheckpoint):
					stale++
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, wins, "exactly one writer must win")
		assert.Equal(t, writers-1, stale)

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)
	})

	t.Run("List", func(t *testing.T) {
		id1 := prefix + "-list-1"
		id2 := prefix + "-list-2"
		require.NoError(t, store.Save(ctx, newCP(id1)))
		require.NoError(t, store.Save(ctx, newCP(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
