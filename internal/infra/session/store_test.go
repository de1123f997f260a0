package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragd/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "ragd.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedCollection(t *testing.T, store *Store, id, owner string) {
	t.Helper()
	require.NoError(t, store.CreateCollection(context.Background(), domain.Collection{
		ID:         id,
		OwnerID:    owner,
		ProviderID: "kb-main",
		Name:       "docs",
	}))
}

func TestStore_IsAuthorized(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedCollection(t, store, "col-1", "alice")

	ok, err := store.IsAuthorized(ctx, "alice", "col-1")
	require.NoError(t, err)
	require.True(t, ok, "owner must be authorized")

	ok, err = store.IsAuthorized(ctx, "bob", "col-1")
	require.NoError(t, err)
	require.False(t, ok, "stranger must not be authorized")

	require.NoError(t, store.ShareCollection(ctx, "col-1", "bob"))
	ok, err = store.IsAuthorized(ctx, "bob", "col-1")
	require.NoError(t, err)
	require.True(t, ok, "shared caller must be authorized")

	ok, err = store.IsAuthorized(ctx, "alice", "missing")
	require.NoError(t, err)
	require.False(t, ok, "unknown collection must not authorize")
}

func TestStore_CollectionProvider(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedCollection(t, store, "col-1", "alice")

	providerID, err := store.CollectionProvider(ctx, "col-1")
	require.NoError(t, err)
	require.Equal(t, "kb-main", providerID)

	_, err = store.CollectionProvider(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestStore_GetOrCreateSession_Idempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedCollection(t, store, "col-1", "alice")

	first, err := store.GetOrCreateSession(ctx, "alice", "col-1")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.GetOrCreateSession(ctx, "alice", "col-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	seedCollection(t, store, "col-2", "alice")
	other, err := store.GetOrCreateSession(ctx, "alice", "col-2")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestStore_GetOrCreateSession_Concurrent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedCollection(t, store, "col-1", "alice")

	const workers = 10
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := store.GetOrCreateSession(ctx, "alice", "col-1")
			ids[i], errs[i] = session.ID, err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, id := range ids {
		require.Equal(t, ids[0], id, "concurrent creation must converge on one session")
	}
}

func TestStore_AppendExchangeAndRecentTurns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedCollection(t, store, "col-1", "alice")
	session, err := store.GetOrCreateSession(ctx, "alice", "col-1")
	require.NoError(t, err)

	for i := 1; i <= 7; i++ {
		err := store.AppendExchange(ctx, session.ID,
			fmt.Sprintf("question %d", i),
			fmt.Sprintf("answer %d", i),
		)
		require.NoError(t, err)
	}

	turns, err := store.RecentTurns(ctx, session.ID, 4)
	require.NoError(t, err)
	require.Len(t, turns, 4)

	require.Equal(t, domain.RoleUser, turns[0].Role)
	require.Equal(t, "question 6", turns[0].Content)
	require.Equal(t, domain.RoleAssistant, turns[3].Role)
	require.Equal(t, "answer 7", turns[3].Content)

	for i := 1; i < len(turns); i++ {
		require.Greater(t, turns[i].Ordinal, turns[i-1].Ordinal)
	}
}

func TestStore_RecentTurns_EmptySession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedCollection(t, store, "col-1", "alice")
	session, err := store.GetOrCreateSession(ctx, "alice", "col-1")
	require.NoError(t, err)

	turns, err := store.RecentTurns(ctx, session.ID, 10)
	require.NoError(t, err)
	require.Empty(t, turns)
}
