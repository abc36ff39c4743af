package chat_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/aura-companion/gateway/internal/model/chat"
	chat "github.com/aura-companion/gateway/internal/service/chat"
)

func stores(t *testing.T) map[string]chat.Store {
	t.Helper()

	sqlStore, err := chat.OpenSQLStore(context.Background(), "sqlite", filepath.Join(t.TempDir(), "transcripts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]chat.Store{
		"memory": chat.NewMemoryStore(),
		"sqlite": sqlStore,
	}
}

func TestStoreAppendAssignsSequentialIDs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := store.Append(ctx, "aura", model.RoleUser, "hello")
			require.NoError(t, err)
			second, err := store.Append(ctx, "aura", model.RoleAssistant, "hi there")
			require.NoError(t, err)
			other, err := store.Append(ctx, "coach", model.RoleUser, "stretch?")
			require.NoError(t, err)

			assert.Equal(t, int64(1), first.Seq)
			assert.Equal(t, int64(2), second.Seq)
			assert.Equal(t, int64(1), other.Seq)

			history, err := store.History(ctx, "aura")
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, "hello", history[0].Content)
			assert.Equal(t, model.RoleUser, history[0].Role)
			assert.Equal(t, "hi there", history[1].Content)
			assert.Equal(t, model.RoleAssistant, history[1].Role)
			assert.False(t, history[1].CreatedAt.Before(history[0].CreatedAt))
		})
	}
}

func TestStoreConcurrentAppendIsGapFree(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 16

			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.Append(ctx, model.DefaultConversation, model.RoleUser, "ping")
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			history, err := store.History(ctx, model.DefaultConversation)
			require.NoError(t, err)
			require.Len(t, history, writers)
			for i, msg := range history {
				assert.Equal(t, int64(i+1), msg.Seq)
			}
		})
	}
}

func TestStoreDeleteAndEmptyHistory(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			history, err := store.History(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, history)

			_, err = store.Append(ctx, "aura", model.RoleUser, "bye")
			require.NoError(t, err)
			require.NoError(t, store.Delete(ctx, "aura"))

			history, err = store.History(ctx, "aura")
			require.NoError(t, err)
			assert.Empty(t, history)

			msg, err := store.Append(ctx, "aura", model.RoleUser, "again")
			require.NoError(t, err)
			assert.Equal(t, int64(1), msg.Seq)
		})
	}
}

func TestStoreRejectsEmptyConversation(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Append(context.Background(), " ", model.RoleUser, "x")
			assert.ErrorIs(t, err, chat.ErrConversationRequired)
		})
	}
}

func TestSQLStoreReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "nested", "transcripts.db")

	store, err := chat.OpenSQLStore(ctx, "sqlite", dsn)
	require.NoError(t, err)
	_, err = store.Append(ctx, "aura", model.RoleUser, "remember me")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := chat.OpenSQLStore(ctx, "sqlite", dsn)
	require.NoError(t, err)
	defer reopened.Close()

	next, err := reopened.Append(ctx, "aura", model.RoleAssistant, "I do")
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Seq)
}

func TestOpenSQLStoreRejectsUnknownDriver(t *testing.T) {
	_, err := chat.OpenSQLStore(context.Background(), "mysql", "x")
	assert.Error(t, err)
}
