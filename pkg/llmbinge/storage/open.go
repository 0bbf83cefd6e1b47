package storage

import (
	"context"
	"fmt"
	"strings"
)

// Open creates a Store from a URL:
//
//	memory://
//	sqlite://path/to/file.db   (sqlite://:memory: for a throwaway database)
//	redis://host:6379/0        (rediss:// for TLS)
func Open(ctx context.Context, url string) (Store, error) {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return nil, fmt.Errorf("storage url %q: missing scheme", url)
	}

	switch scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if rest == "" {
			return nil, fmt.Errorf("storage url %q: missing database path", url)
		}
		return NewSQLiteStore(rest)
	case "redis", "rediss":
		return NewRedisStore(ctx, url, WithKeyPrefix("llmbinge:"))
	default:
		return nil, fmt.Errorf("storage url %q: unsupported scheme %q", url, scheme)
	}
}
