package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// unlockScript deletes the key only when it still holds the caller's token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a best-effort distributed mutex built on SET NX PX.
// It serializes attempt creation across replicas; the repository's conditional
// insert remains the source of truth.
type RedisLocker struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
		logger:     slog.Default(),
	}
}

// Lock blocks until the key is acquired or ctx is done. The returned func releases it.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", fullKey, err)
		}
		if ok {
			return func() {
				// Release with a fresh context so a cancelled request still unlocks.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				released, err := unlockScript.Run(releaseCtx, l.client, []string{fullKey}, token).Int()
				if err != nil {
					l.logger.ErrorContext(releaseCtx, "Failed to release lock", "key", fullKey, "error", err)
					return
				}
				if released == 0 {
					l.logger.WarnContext(releaseCtx, "Lock expired before release", "key", fullKey, "ttl", l.ttl)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, fullKey, ctx.Err())
		case <-time.After(l.retryDelay):
		}
	}
}
