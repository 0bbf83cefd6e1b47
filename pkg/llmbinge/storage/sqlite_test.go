package storage_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/storage"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store1, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.SaveSession(ctx, sampleSession("s1", epoch)))
	require.NoError(t, store1.SaveNode(ctx, sampleNode("n1", "s1")))
	require.NoError(t, store1.SaveConfigOverrides(ctx, map[string]any{"k": "v"}))
	require.NoError(t, store1.Close())

	store2, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	s, err := store2.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Session s1", s.Title)

	n, err := store2.Node(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "content of n1", n.Content)

	over, err := store2.ConfigOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", over["k"])
}

func TestSQLiteStore_SessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveSession(ctx, sampleSession("old", epoch)))
	require.NoError(t, store.SaveSession(ctx, sampleSession("new", epoch.Add(time.Hour))))
	require.NoError(t, store.SaveSession(ctx, sampleSession("mid", epoch.Add(time.Minute))))

	all, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, sessionIDs(all))
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := storage.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	const numGoroutines = 20
	const numOps = 10

	var wg sync.WaitGroup
	for g := range numGoroutines {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range numOps {
				n := sampleNode(fmt.Sprintf("n-%d-%d", g, i), "s1")
				assert.NoError(t, store.SaveNode(ctx, n))
				_, err := store.Node(ctx, n.ID)
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	nodes, err := store.NodesForSession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, nodes, numGoroutines*numOps)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := storage.Open(ctx, "memory://")
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, mem)
	require.NoError(t, mem.Close())

	lite, err := storage.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLiteStore{}, lite)
	require.NoError(t, lite.SaveNode(ctx, tree.Node{ID: "n", SessionID: "s"}))
	require.NoError(t, lite.Close())

	for _, bad := range []string{"nourl", "sqlite://", "ftp://x"} {
		_, err := storage.Open(ctx, bad)
		assert.Error(t, err, bad)
	}
}
