package cache

import (
	"context"
	"strings"
	"time"
)

// Store is the key/value surface behind request rate limiting.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// ExpiringStore is a Store that keeps expired rows until they are purged. The maintenance
// cleaner calls DeleteExpired on its cache schedule.
type ExpiringStore interface {
	Store
	DeleteExpired(ctx context.Context) (int64, error)
}

var _ ExpiringStore = (*DatabaseStore)(nil)

// Key joins a namespace and its parts into a cache key, e.g. "ratelimit:10.0.0.1:GET /api/messages".
// Empty parts are skipped.
func Key(namespace string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}
