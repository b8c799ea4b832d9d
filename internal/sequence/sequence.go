// internal/sequence/sequence.go
package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Generator produces document numbers of the form {PREFIX}-{yyyymmdd}-{seq},
// where the sequence component is a monotonic per-prefix, per-day counter.
// Backed by a Redis INCR when a client is configured; otherwise an
// in-process counter keeps uniqueness within a single instance. The
// counter replaces deriving numbers from row counts, which races under
// concurrent creation.
type Generator struct {
	rdb *redis.Client

	mu     sync.Mutex
	local  map[string]int64
	nowFn  func() time.Time
	keyTTL time.Duration
}

func New(rdb *redis.Client) *Generator {
	return &Generator{
		rdb:    rdb,
		local:  make(map[string]int64),
		nowFn:  time.Now,
		keyTTL: 48 * time.Hour,
	}
}

// Next returns the next number for the given prefix, e.g. "ORD-20260829-000042".
func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	date := g.nowFn().UTC().Format("20060102")
	key := fmt.Sprintf("seq:%s:%s", prefix, date)

	n, err := g.increment(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to allocate sequence for %s: %w", prefix, err)
	}

	return fmt.Sprintf("%s-%s-%06d", prefix, date, n), nil
}

func (g *Generator) increment(ctx context.Context, key string) (int64, error) {
	if g.rdb != nil {
		n, err := g.rdb.Incr(ctx, key).Result()
		if err == nil {
			// First allocation of the day sets the expiry; stale day keys
			// age out on their own.
			if n == 1 {
				if expErr := g.rdb.Expire(ctx, key, g.keyTTL).Err(); expErr != nil {
					logrus.WithError(expErr).WithField("key", key).Warn("Failed to set sequence key expiry")
				}
			}
			return n, nil
		}
		logrus.WithError(err).WithField("key", key).Warn("Redis sequence unavailable, using in-process counter")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.local[key]++
	return g.local[key], nil
}
