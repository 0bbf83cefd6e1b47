package benchmarks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/storage"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

func articleNode() tree.Node {
	n := tree.NewNode(tree.NodeFields{SessionID: "s", Title: "Octopus"})
	n.Content = strings.Repeat("Octopuses have three hearts and blue blood. ", 200)
	n.Metadata = map[string]any{"aspect": "Biology"}
	return n
}

// BenchmarkMemoryStore_SaveNode measures the in-memory flush path.
func BenchmarkMemoryStore_SaveNode(b *testing.B) {
	store := storage.NewMemoryStore()
	defer store.Close()
	benchmarkSaveNode(b, store)
}

// BenchmarkSQLiteStore_SaveNode measures the SQLite flush path.
func BenchmarkSQLiteStore_SaveNode(b *testing.B) {
	store := createSQLiteStore(b)
	benchmarkSaveNode(b, store)
}

// BenchmarkSQLiteStore_NodesForSession measures loading a session's nodes.
func BenchmarkSQLiteStore_NodesForSession(b *testing.B) {
	store := createSQLiteStore(b)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := store.SaveNode(ctx, articleNode()); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.NodesForSession(ctx, "s")
	}
}

func benchmarkSaveNode(b *testing.B, store storage.Store) {
	ctx := context.Background()
	n := articleNode()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.SaveNode(ctx, n)
	}
}

func createSQLiteStore(b *testing.B) *storage.SQLiteStore {
	b.Helper()
	dir, err := os.MkdirTemp("", "bench-*")
	if err != nil {
		b.Fatal(err)
	}
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "bench.db"))
	if err != nil {
		os.RemoveAll(dir)
		b.Fatal(err)
	}
	b.Cleanup(func() {
		store.Close()
		os.RemoveAll(dir)
	})
	return store
}
